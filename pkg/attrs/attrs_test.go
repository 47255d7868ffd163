package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"certreg/pkg/domain"
)

func TestExtractString(t *testing.T) {
	attrs := []any{"cert_id", domain.CertID(7), "caller", domain.Principal("ST1ISSUER"), "reason", "not_owner", "count", 3}

	assert.Equal(t, "7", ExtractString(attrs, "cert_id"))
	assert.Equal(t, "ST1ISSUER", ExtractString(attrs, "caller"))
	assert.Equal(t, "not_owner", ExtractString(attrs, "reason"))
	assert.Empty(t, ExtractString(attrs, "count"))
	assert.Empty(t, ExtractString(attrs, "missing"))
	assert.Empty(t, ExtractString([]any{"dangling"}, "dangling"))
}
