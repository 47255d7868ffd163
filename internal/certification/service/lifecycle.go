package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"certreg/internal/certification/models"
	"certreg/internal/certification/ports"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	audit "certreg/pkg/platform/audit"
	"certreg/pkg/platform/sentinel"
)

// IsExpired reports whether id has an expiry strictly below the current
// height. Absent tokens and tokens without an expiry are not expired.
func (s *Service) IsExpired(ctx context.Context, id domain.CertID) (bool, error) {
	entry, err := s.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certification")
	}
	return entry.Record.ExpiredAt(s.clock.CurrentHeight()), nil
}

// Burn removes an expired certification at its owner's request. A refusal
// returns false with a *models.BurnRejectedError and leaves the entry in
// place.
func (s *Service) Burn(ctx context.Context, id domain.CertID, caller domain.Principal) (bool, error) {
	ctx, span := s.startSpan(ctx, "Burn")
	defer span.End()
	span.SetAttributes(
		attribute.String("cert_id", id.String()),
		attribute.String("caller", caller.String()),
	)

	err := s.registry.RunInTx(ctx, func(stores ports.Stores) error {
		entry, err := stores.Certs.Get(ctx, id)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certification")
		}
		if entry == nil || caller.IsZero() || entry.Owner != caller {
			return &models.BurnRejectedError{Reason: models.BurnNotOwner}
		}
		if !entry.Record.ExpiredAt(s.clock.CurrentHeight()) {
			return &models.BurnRejectedError{Reason: models.BurnNotExpired}
		}
		if err := stores.Certs.Delete(ctx, id); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete certification")
		}
		return nil
	})
	if err != nil {
		failSpan(span, err)
		var rejected *models.BurnRejectedError
		if errors.As(err, &rejected) {
			s.metrics.IncBurnRejection(string(rejected.Reason))
			s.logAudit(ctx, audit.EventCertificationBurnRejected, caller, id.String(), "rejected",
				"reason", string(rejected.Reason),
			)
		} else if s.logger != nil {
			s.logger.ErrorContext(ctx, "burn failed", "cert_id", id.String(), "error", err)
		}
		return false, err
	}

	s.metrics.IncBurn()
	s.logAudit(ctx, audit.EventCertificationBurned, caller, id.String(), "burned")
	return true, nil
}
