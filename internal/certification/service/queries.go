package service

import (
	"context"
	"errors"

	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/sentinel"
)

var errCertificationNotFound = dErrors.New(dErrors.CodeNotFound, "certification not found")

func (s *Service) GetRecord(ctx context.Context, id domain.CertID) (*models.Record, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	return &entry.Record, nil
}

func (s *Service) GetOwner(ctx context.Context, id domain.CertID) (domain.Principal, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return "", err
	}
	return entry.Owner, nil
}

// VerifyOwnership is false for absent tokens.
func (s *Service) VerifyOwnership(ctx context.Context, id domain.CertID, account domain.Principal) (bool, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return !account.IsZero() && entry.Owner == account, nil
}

// PeekNextID returns the identifier the next successful mint will receive.
func (s *Service) PeekNextID(ctx context.Context) (domain.CertID, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.NextCertID, nil
}

func (s *Service) PeekMintFee(ctx context.Context) (uint64, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.MintFee, nil
}

// GetConfig returns the operator view of the registry configuration.
func (s *Service) GetConfig(ctx context.Context) (*models.ConfigView, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	return &models.ConfigView{
		ControllingAuthority: cfg.ControllingAuthority,
		Treasury:             cfg.Treasury,
		MintFee:              cfg.MintFee,
		MaxCerts:             cfg.MaxCerts,
		NextCertID:           cfg.NextCertID,
	}, nil
}

func (s *Service) entry(ctx context.Context, id domain.CertID) (*models.Entry, error) {
	entry, err := s.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errCertificationNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certification")
	}
	return entry, nil
}

func (s *Service) config(ctx context.Context) (*models.RegistryConfig, error) {
	cfg, err := s.registry.Load(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			d := s.defaults.Clone()
			return &d, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry config")
	}
	return cfg, nil
}
