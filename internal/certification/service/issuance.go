package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"certreg/internal/certification/models"
	"certreg/internal/certification/ports"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	audit "certreg/pkg/platform/audit"
	"certreg/pkg/platform/sentinel"
)

const (
	stageTransfer     = "transfer"
	stageConfirmation = "confirmation"
)

// Mint issues a certification to req.TeacherID and returns its identifier.
//
// Checks run in a fixed order and the first failure wins. The fee is
// collected only after every check passes, and the entry is written and the
// counter advanced only if both payment calls succeed. Any failure leaves the
// registry unchanged.
func (s *Service) Mint(ctx context.Context, req models.MintRequest) (domain.CertID, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Mint")
	defer span.End()
	defer s.metrics.ObserveMintDuration(start)

	height := s.clock.CurrentHeight()
	span.SetAttributes(
		attribute.String("caller", req.Caller.String()),
		attribute.Int64("height", int64(height)),
	)

	var id domain.CertID
	err := s.registry.RunInTx(ctx, func(stores ports.Stores) error {
		cfg, err := stores.Config.LoadForUpdate(ctx, s.defaults)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry config")
		}
		if err := validateMint(cfg, req, height); err != nil {
			return err
		}

		allowed, err := s.oracle.IsAuthorized(ctx, req.Caller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer authorization")
		}
		if !allowed {
			return models.ErrNotAuthorized
		}

		exists, err := stores.Certs.Exists(ctx, cfg.NextCertID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check certification")
		}
		if exists {
			return models.ErrAlreadyMinted
		}

		if err := s.collectFee(ctx, cfg, req.Caller); err != nil {
			return err
		}

		entry := &models.Entry{
			ID: cfg.NextCertID,
			Record: models.Record{
				TeacherID:   req.TeacherID,
				Issuer:      req.Caller,
				DocHash:     req.DocHash,
				IssueDate:   req.IssueDate,
				ExpiryDate:  req.ExpiryDate,
				Subjects:    req.Subjects,
				IssuingBody: req.IssuingBody,
			}.Clone(),
			Owner: req.TeacherID,
		}
		if err := stores.Certs.Insert(ctx, entry); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.ErrAlreadyMinted
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certification")
		}

		cfg.NextCertID++
		if err := stores.Config.Save(ctx, cfg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registry config")
		}
		id = entry.ID
		return nil
	})
	if err != nil {
		failSpan(span, err)
		s.recordMintFailure(ctx, req, err)
		return 0, err
	}

	span.SetAttributes(attribute.String("cert_id", id.String()))
	s.metrics.IncMint()
	s.logAudit(ctx, audit.EventCertificationMinted, req.Caller, id.String(), "minted",
		"teacher_id", req.TeacherID.String(),
		"height", height,
	)
	return id, nil
}

// validateMint applies the pure checks, in order, against the locked config.
func validateMint(cfg *models.RegistryConfig, req models.MintRequest, height uint64) error {
	if uint64(cfg.NextCertID) >= cfg.MaxCerts {
		return models.ErrMaxCertsExceeded
	}
	if len(req.DocHash) == 0 {
		return models.ErrInvalidDocHash
	}
	if req.IssueDate < height || req.IssueDate > models.MaxStoredValue {
		return models.ErrInvalidIssueDate
	}
	if req.ExpiryDate != nil && (*req.ExpiryDate <= req.IssueDate || *req.ExpiryDate > models.MaxStoredValue) {
		return models.ErrInvalidExpiryDate
	}
	if !validSubjects(req.Subjects) {
		return models.ErrInvalidSubjects
	}
	if n := utf8.RuneCountInString(req.IssuingBody); n < 1 || n > models.MaxIssuingBodyLength {
		return models.ErrInvalidIssuingBody
	}
	return nil
}

func validSubjects(subjects []string) bool {
	if len(subjects) < 1 || len(subjects) > models.MaxSubjects {
		return false
	}
	for _, subject := range subjects {
		if utf8.RuneCountInString(subject) > models.MaxSubjectLength {
			return false
		}
	}
	return true
}

// collectFee transfers the fee to the treasury and confirms it. A decline
// and a collaborator error are both reported under the stage's code.
func (s *Service) collectFee(ctx context.Context, cfg *models.RegistryConfig, payer domain.Principal) error {
	ok, err := s.payments.Transfer(ctx, cfg.MintFee, payer, cfg.Treasury)
	if err != nil || !ok {
		s.metrics.IncFeeFailure(stageTransfer)
		return &models.MintError{Code: models.CodeFeeTransferFailed, Err: declineCause(err, "fee transfer declined")}
	}

	ok, err = s.payments.ConfirmFeePayment(ctx, cfg.MintFee, payer)
	if err != nil || !ok {
		s.metrics.IncFeeFailure(stageConfirmation)
		return &models.MintError{Code: models.CodeNftMintFailed, Err: declineCause(err, "fee confirmation declined")}
	}
	return nil
}

func declineCause(err error, msg string) error {
	if err != nil {
		return err
	}
	return errors.New(msg)
}

func (s *Service) recordMintFailure(ctx context.Context, req models.MintRequest, err error) {
	var mintErr *models.MintError
	if !errors.As(err, &mintErr) {
		s.metrics.IncMintRejection("internal")
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "mint failed", "caller", req.Caller.String(), "error", err)
		}
		return
	}
	s.metrics.IncMintRejection(mintErr.Code.String())
	s.logAudit(ctx, audit.EventCertificationMintRejected, req.Caller, req.TeacherID.String(), "rejected",
		"reason", mintErr.Code.String(),
		"code", uint32(mintErr.Code),
	)
}
