package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certreg/pkg/domain-errors"
)

// TestParsePrincipal_Invariants validates the parsing invariant:
// "principals are non-empty, bounded, and use the address alphabet"
//
// Justification: This is a pure function enforcing a domain invariant
// at trust boundaries.
func TestParsePrincipal_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePrincipal("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts standard principal", func(t *testing.T) {
		p, err := ParsePrincipal("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7")
		require.NoError(t, err)
		assert.Equal(t, Principal("SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"), p)
	})

	t.Run("accepts contract principal", func(t *testing.T) {
		_, err := ParsePrincipal("ST1ISSUER.issuer-registry")
		require.NoError(t, err)
	})
}

// TestParsePrincipal_SecurityInvariants validates rejection of hostile input.
//
// Justification: principals are written to storage and logs; parsing must
// reject attack vectors at API entry points.
func TestParsePrincipal_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE certifications;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "ST1TEACHER\x00admin", true},
		{"Oversized input", strings.Repeat("A", 1000), true},
		{"Unicode zero-width space", "ST1\u200BTEACHER", true},
		{"Whitespace only", "   ", true},
		{"Leading dot", ".contract", true},
		{"Trailing dot", "ST1ISSUER.", true},
		{"Valid teacher", "ST1TEACHER", false},
		{"Valid with underscore", "ST1_TEACHER", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrincipal(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseCertID(t *testing.T) {
	tests := []struct {
		input   string
		want    CertID
		wantErr bool
	}{
		{"1", 1, false},
		{"10000", 10000, false},
		{"0", 0, true},
		{"", 0, true},
		{"-1", 0, true},
		{"1.5", 0, true},
		{"abc", 0, true},
		{"18446744073709551616", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCertID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}
