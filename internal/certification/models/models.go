package models

import (
	"math"
	"slices"

	"certreg/pkg/domain"
)

const (
	MaxSubjects          = 10
	MaxSubjectLength     = 50
	MaxIssuingBodyLength = 100

	// MaxStoredValue bounds heights and amounts so every store can persist
	// them; Postgres keeps them in BIGINT columns.
	MaxStoredValue uint64 = math.MaxInt64
)

// Record is one certification. Records are immutable once written; only
// their presence in the registry changes.
type Record struct {
	TeacherID   domain.Principal
	Issuer      domain.Principal
	DocHash     []byte
	IssueDate   uint64
	ExpiryDate  *uint64
	Subjects    []string
	IssuingBody string
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r Record) Clone() Record {
	out := r
	out.DocHash = slices.Clone(r.DocHash)
	out.Subjects = slices.Clone(r.Subjects)
	if r.ExpiryDate != nil {
		exp := *r.ExpiryDate
		out.ExpiryDate = &exp
	}
	return out
}

// ExpiredAt reports whether the record has an expiry and height is strictly
// past it.
func (r Record) ExpiredAt(height uint64) bool {
	return r.ExpiryDate != nil && height > *r.ExpiryDate
}

// Entry is the unit the registry stores: a record together with its owner.
// Writing and deleting them together keeps the two mappings in step.
type Entry struct {
	ID     domain.CertID
	Record Record
	Owner  domain.Principal
}

// RegistryConfig is the registry-wide state guarded by the admin gate.
type RegistryConfig struct {
	NextCertID           domain.CertID
	MaxCerts             uint64
	MintFee              uint64
	Treasury             domain.Principal
	ControllingAuthority *domain.Principal
}

// DefaultConfig is the state of a registry that has never been written.
func DefaultConfig(maxCerts, mintFee uint64, treasury domain.Principal) RegistryConfig {
	return RegistryConfig{
		NextCertID: 1,
		MaxCerts:   maxCerts,
		MintFee:    mintFee,
		Treasury:   treasury,
	}
}

func (c RegistryConfig) Clone() RegistryConfig {
	out := c
	if c.ControllingAuthority != nil {
		a := *c.ControllingAuthority
		out.ControllingAuthority = &a
	}
	return out
}

// MintRequest carries the caller-supplied fields of a mint.
type MintRequest struct {
	TeacherID   domain.Principal
	DocHash     []byte
	IssueDate   uint64
	ExpiryDate  *uint64
	Subjects    []string
	IssuingBody string
	Caller      domain.Principal
}

// ConfigView is the operator-facing snapshot of the registry configuration.
type ConfigView struct {
	ControllingAuthority *domain.Principal `json:"controlling_authority"`
	Treasury             domain.Principal  `json:"treasury"`
	MintFee              uint64            `json:"mint_fee"`
	MaxCerts             uint64            `json:"max_certs"`
	NextCertID           domain.CertID     `json:"next_cert_id"`
}
