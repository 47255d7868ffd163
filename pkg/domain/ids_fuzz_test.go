//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePrincipal tests that parsing never panics on arbitrary input
// and always returns either a valid principal or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParsePrincipal(f *testing.F) {
	f.Add("")
	f.Add("ST1TEACHER")
	f.Add("ST1ISSUER.issuer-registry")
	f.Add("'; DROP TABLE certifications;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		p, err := ParsePrincipal(input)
		if err == nil {
			roundTrip, err2 := ParsePrincipal(p.String())
			if err2 != nil {
				t.Errorf("valid principal failed round-trip: %v", err2)
			}
			if roundTrip != p {
				t.Error("round-trip changed principal value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseCertID checks that accepted identifiers are positive and
// round-trip through their decimal rendering.
func FuzzParseCertID(f *testing.F) {
	f.Add("1")
	f.Add("0")
	f.Add("")
	f.Add("99999999999999999999")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseCertID(input)
		if err != nil {
			return
		}
		if id == 0 {
			t.Error("zero identifier was accepted")
		}
		if again, err := ParseCertID(id.String()); err != nil || again != id {
			t.Errorf("identifier %q failed round-trip", input)
		}
	})
}
