package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"

	dErrors "certreg/pkg/domain-errors"
)

// maxPrincipalLength bounds account identifiers at trust boundaries. Standard
// principals are 28-41 characters; contract principals append ".<name>" of up
// to 40 more.
const maxPrincipalLength = 128

// Principal identifies an account: a certification subject, an issuer, the
// treasury or the controlling authority.
type Principal string

// String returns the raw identifier.
func (p Principal) String() string {
	return string(p)
}

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool {
	return p == ""
}

// ParsePrincipal validates an account identifier received from outside the
// process. Accepted characters are ASCII letters, digits, '.', '-' and '_'.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(s) > maxPrincipalLength || !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is malformed")
	}
	for _, r := range s {
		if !isPrincipalRune(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "principal contains invalid characters")
		}
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is malformed")
	}
	return Principal(s), nil
}

func isPrincipalRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}

// CertID is the registry-assigned token identifier. Identifiers start at 1
// and are never reused.
type CertID uint64

// String renders the identifier in decimal.
func (id CertID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseCertID parses a decimal token identifier. Zero is never assigned and is
// rejected.
func ParseCertID(s string) (CertID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "certification id is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "certification id must be a positive integer")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "certification id must be a positive integer")
	}
	return CertID(n), nil
}
