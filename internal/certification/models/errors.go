package models

import (
	"fmt"

	dErrors "certreg/pkg/domain-errors"
)

// ErrorCode is the stable numeric code of a mint failure. Values are part of
// the external contract and are never renumbered.
type ErrorCode uint32

const (
	CodeNotAuthorized      ErrorCode = 100
	CodeInvalidDocHash     ErrorCode = 101
	CodeInvalidIssueDate   ErrorCode = 102
	CodeInvalidExpiryDate  ErrorCode = 103
	CodeInvalidSubjects    ErrorCode = 104
	CodeInvalidIssuingBody ErrorCode = 105
	CodeAlreadyMinted      ErrorCode = 106
	CodeNftMintFailed      ErrorCode = 107
	CodeFeeTransferFailed  ErrorCode = 108
	CodeInvalidTeacher     ErrorCode = 109
	CodeMaxCertsExceeded   ErrorCode = 110
)

var codeNames = map[ErrorCode]string{
	CodeNotAuthorized:      "not_authorized",
	CodeInvalidDocHash:     "invalid_doc_hash",
	CodeInvalidIssueDate:   "invalid_issue_date",
	CodeInvalidExpiryDate:  "invalid_expiry_date",
	CodeInvalidSubjects:    "invalid_subjects",
	CodeInvalidIssuingBody: "invalid_issuing_body",
	CodeAlreadyMinted:      "already_minted",
	CodeNftMintFailed:      "mint_failed",
	CodeFeeTransferFailed:  "fee_transfer_failed",
	CodeInvalidTeacher:     "invalid_teacher",
	CodeMaxCertsExceeded:   "max_certs_exceeded",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", uint32(c))
}

// IsExternal reports whether the failure came from the payment collaborator
// rather than from the request itself.
func (c ErrorCode) IsExternal() bool {
	return c == CodeNftMintFailed || c == CodeFeeTransferFailed
}

// MintError is the failure of a mint. Two MintErrors match under errors.Is
// when their codes are equal.
type MintError struct {
	Code ErrorCode
	Err  error
}

func (e *MintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mint rejected: %s (%d): %v", e.Code, uint32(e.Code), e.Err)
	}
	return fmt.Sprintf("mint rejected: %s (%d)", e.Code, uint32(e.Code))
}

func (e *MintError) Unwrap() error {
	return e.Err
}

func (e *MintError) Is(target error) bool {
	t, ok := target.(*MintError)
	return ok && t.Code == e.Code
}

var (
	ErrNotAuthorized      = &MintError{Code: CodeNotAuthorized}
	ErrInvalidDocHash     = &MintError{Code: CodeInvalidDocHash}
	ErrInvalidIssueDate   = &MintError{Code: CodeInvalidIssueDate}
	ErrInvalidExpiryDate  = &MintError{Code: CodeInvalidExpiryDate}
	ErrInvalidSubjects    = &MintError{Code: CodeInvalidSubjects}
	ErrInvalidIssuingBody = &MintError{Code: CodeInvalidIssuingBody}
	ErrAlreadyMinted      = &MintError{Code: CodeAlreadyMinted}
	ErrNftMintFailed      = &MintError{Code: CodeNftMintFailed}
	ErrFeeTransferFailed  = &MintError{Code: CodeFeeTransferFailed}
	ErrInvalidTeacher     = &MintError{Code: CodeInvalidTeacher}
	ErrMaxCertsExceeded   = &MintError{Code: CodeMaxCertsExceeded}
)

// BurnRejectReason distinguishes burn rejections internally. The external
// result collapses both to a plain failure.
type BurnRejectReason string

const (
	BurnNotOwner   BurnRejectReason = "not_owner"
	BurnNotExpired BurnRejectReason = "not_expired"
)

// BurnRejectedError is returned alongside false when a burn is refused.
type BurnRejectedError struct {
	Reason BurnRejectReason
}

func (e *BurnRejectedError) Error() string {
	return "burn rejected: " + string(e.Reason)
}

// Is matches any BurnRejectedError, so errors.Is(err, ErrBurnRejected) holds
// for both reasons.
func (e *BurnRejectedError) Is(target error) bool {
	_, ok := target.(*BurnRejectedError)
	return ok
}

var ErrBurnRejected = &BurnRejectedError{}

var (
	// ErrAlreadyBound is returned when a controlling authority is already set.
	ErrAlreadyBound = dErrors.New(dErrors.CodeConflict, "controlling authority already bound")
	// ErrNotConfigured is returned by fee and treasury changes before an
	// authority has been bound.
	ErrNotConfigured = dErrors.New(dErrors.CodePrecondition, "controlling authority not bound")
)
