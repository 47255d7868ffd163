package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// OperatorActor is recorded as the actor of allow-list changes made through
// admin-token routes, which carry no caller principal.
const OperatorActor domain.Principal = "operator"

const maxReasonLength = 256

// Entry grants a principal permission to mint certifications.
type Entry struct {
	Principal domain.Principal `json:"principal"`
	Reason    string           `json:"reason,omitempty"`
	CreatedBy domain.Principal `json:"created_by,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewEntry validates and builds an allow-list entry.
func NewEntry(principal domain.Principal, reason string, createdBy domain.Principal, now time.Time) (*Entry, error) {
	if principal.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal is required")
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reason must be 256 characters or fewer")
	}
	return &Entry{
		Principal: principal,
		Reason:    reason,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}

// AddRequest is the admin payload for POST /admin/issuers.
type AddRequest struct {
	Principal string `json:"principal"`
	Reason    string `json:"reason"`
}

type ListResponse struct {
	Issuers []*Entry `json:"issuers"`
}
