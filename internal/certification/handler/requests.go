package handler

import (
	"encoding/hex"

	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// MintRequest is the JSON body of POST /certifications. DocHash is hex.
type MintRequest struct {
	Teacher     string   `json:"teacher"`
	DocHash     string   `json:"doc_hash"`
	IssueDate   uint64   `json:"issue_date"`
	ExpiryDate  *uint64  `json:"expiry_date"`
	Subjects    []string `json:"subjects"`
	IssuingBody string   `json:"issuing_body"`
}

// ToModel converts the body into a service request for caller. A malformed
// teacher maps to InvalidTeacher: without a subject there is no request to
// run. Undecodable hex is passed on as an empty DocHash so the issuance
// engine reports InvalidDocHash at its own place in the check order.
func (r *MintRequest) ToModel(caller domain.Principal) (models.MintRequest, error) {
	teacher, err := domain.ParsePrincipal(r.Teacher)
	if err != nil {
		return models.MintRequest{}, &models.MintError{Code: models.CodeInvalidTeacher, Err: err}
	}
	docHash, err := hex.DecodeString(r.DocHash)
	if err != nil {
		docHash = nil
	}
	return models.MintRequest{
		TeacherID:   teacher,
		DocHash:     docHash,
		IssueDate:   r.IssueDate,
		ExpiryDate:  r.ExpiryDate,
		Subjects:    r.Subjects,
		IssuingBody: r.IssuingBody,
		Caller:      caller,
	}, nil
}

type BindAuthorityRequest struct {
	Principal string `json:"principal"`
}

type SetMintFeeRequest struct {
	Fee *uint64 `json:"fee"`
}

func (r *SetMintFeeRequest) Validate() error {
	if r.Fee == nil {
		return dErrors.New(dErrors.CodeValidation, "fee is required")
	}
	return nil
}

type SetTreasuryRequest struct {
	Treasury string `json:"treasury"`
}

// Result is the envelope of registry operations: the value on success, the
// error code or false on failure.
type Result struct {
	OK    bool `json:"ok"`
	Value any  `json:"value"`
}

// RecordResponse renders a certification record with a hex DocHash.
type RecordResponse struct {
	ID          domain.CertID    `json:"id"`
	TeacherID   domain.Principal `json:"teacher_id"`
	Issuer      domain.Principal `json:"issuer"`
	DocHash     string           `json:"doc_hash"`
	IssueDate   uint64           `json:"issue_date"`
	ExpiryDate  *uint64          `json:"expiry_date"`
	Subjects    []string         `json:"subjects"`
	IssuingBody string           `json:"issuing_body"`
}

func toRecordResponse(id domain.CertID, r *models.Record) RecordResponse {
	return RecordResponse{
		ID:          id,
		TeacherID:   r.TeacherID,
		Issuer:      r.Issuer,
		DocHash:     hex.EncodeToString(r.DocHash),
		IssueDate:   r.IssueDate,
		ExpiryDate:  r.ExpiryDate,
		Subjects:    r.Subjects,
		IssuingBody: r.IssuingBody,
	}
}

type OwnerResponse struct {
	Owner domain.Principal `json:"owner"`
}

type OwnershipResponse struct {
	Verified bool `json:"verified"`
}

type ExpiredResponse struct {
	Expired bool `json:"expired"`
}
