package service

import (
	"context"
	"strconv"

	"certreg/internal/certification/models"
	"certreg/internal/certification/ports"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	audit "certreg/pkg/platform/audit"
	"certreg/pkg/requestcontext"
)

// BindAuthority sets the controlling authority. It succeeds once; every later
// call returns models.ErrAlreadyBound whatever the candidate.
func (s *Service) BindAuthority(ctx context.Context, candidate domain.Principal) (bool, error) {
	ctx, span := s.startSpan(ctx, "BindAuthority")
	defer span.End()

	if candidate.IsZero() {
		err := dErrors.New(dErrors.CodeValidation, "authority principal is required")
		failSpan(span, err)
		return false, err
	}

	err := s.registry.RunInTx(ctx, func(stores ports.Stores) error {
		cfg, err := stores.Config.LoadForUpdate(ctx, s.defaults)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry config")
		}
		if cfg.ControllingAuthority != nil {
			return models.ErrAlreadyBound
		}
		cfg.ControllingAuthority = &candidate
		if err := stores.Config.Save(ctx, cfg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registry config")
		}
		return nil
	})
	if err != nil {
		failSpan(span, err)
		return false, err
	}

	s.logAudit(ctx, audit.EventAuthorityBound, requestcontext.Caller(ctx), candidate.String(), "applied")
	return true, nil
}

// SetMintFee replaces the mint fee. It requires a bound authority but does
// not compare the caller against it.
func (s *Service) SetMintFee(ctx context.Context, fee uint64) (bool, error) {
	ctx, span := s.startSpan(ctx, "SetMintFee")
	defer span.End()

	if fee > models.MaxStoredValue {
		err := dErrors.New(dErrors.CodeValidation, "mint fee exceeds the storable range")
		failSpan(span, err)
		return false, err
	}

	err := s.updateConfig(ctx, func(cfg *models.RegistryConfig) {
		cfg.MintFee = fee
	})
	if err != nil {
		failSpan(span, err)
		return false, err
	}

	s.logAudit(ctx, audit.EventMintFeeSet, requestcontext.Caller(ctx), "mint_fee", "applied",
		"reason", "mint fee set to "+strconv.FormatUint(fee, 10),
	)
	return true, nil
}

// SetTreasury replaces the fee recipient under the same guard as SetMintFee.
func (s *Service) SetTreasury(ctx context.Context, treasury domain.Principal) (bool, error) {
	ctx, span := s.startSpan(ctx, "SetTreasury")
	defer span.End()

	if treasury.IsZero() {
		err := dErrors.New(dErrors.CodeValidation, "treasury principal is required")
		failSpan(span, err)
		return false, err
	}

	err := s.updateConfig(ctx, func(cfg *models.RegistryConfig) {
		cfg.Treasury = treasury
	})
	if err != nil {
		failSpan(span, err)
		return false, err
	}

	s.logAudit(ctx, audit.EventTreasurySet, requestcontext.Caller(ctx), "treasury", "applied",
		"reason", "treasury set to "+treasury.String(),
	)
	return true, nil
}

func (s *Service) updateConfig(ctx context.Context, apply func(cfg *models.RegistryConfig)) error {
	return s.registry.RunInTx(ctx, func(stores ports.Stores) error {
		cfg, err := stores.Config.LoadForUpdate(ctx, s.defaults)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry config")
		}
		if cfg.ControllingAuthority == nil {
			return models.ErrNotConfigured
		}
		apply(cfg)
		if err := stores.Config.Save(ctx, cfg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registry config")
		}
		return nil
	})
}
