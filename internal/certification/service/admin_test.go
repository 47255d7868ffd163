package service

import (
	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// =============================================================================
// Admin gate
// =============================================================================

func (s *ServiceSuite) TestBindAuthority() {
	ok, err := s.service.BindAuthority(s.ctx, testAuthority)
	s.Require().NoError(err)
	s.True(ok)

	cfg, err := s.service.GetConfig(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(cfg.ControllingAuthority)
	s.Equal(testAuthority, *cfg.ControllingAuthority)

	s.Run("second call fails for any argument", func() {
		for _, candidate := range []domain.Principal{testAuthority, "SP2OTHER"} {
			ok, err := s.service.BindAuthority(s.ctx, candidate)
			s.False(ok)
			s.ErrorIs(err, models.ErrAlreadyBound)
		}

		cfg, err := s.service.GetConfig(s.ctx)
		s.Require().NoError(err)
		s.Equal(testAuthority, *cfg.ControllingAuthority)
	})
}

func (s *ServiceSuite) TestBindAuthorityRequiresPrincipal() {
	ok, err := s.service.BindAuthority(s.ctx, "")
	s.False(ok)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSettersRequireBoundAuthority() {
	ok, err := s.service.SetMintFee(s.ctx, 1)
	s.False(ok)
	s.ErrorIs(err, models.ErrNotConfigured)

	ok, err = s.service.SetTreasury(s.ctx, "SP2NEWTREASURY")
	s.False(ok)
	s.ErrorIs(err, models.ErrNotConfigured)

	fee, err := s.service.PeekMintFee(s.ctx)
	s.Require().NoError(err)
	s.Equal(testFee, fee)
}

func (s *ServiceSuite) TestSettersAfterBind() {
	_, err := s.service.BindAuthority(s.ctx, testAuthority)
	s.Require().NoError(err)

	ok, err := s.service.SetMintFee(s.ctx, 900)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.SetTreasury(s.ctx, "SP2NEWTREASURY")
	s.Require().NoError(err)
	s.True(ok)

	cfg, err := s.service.GetConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(900), cfg.MintFee)
	s.Equal(domain.Principal("SP2NEWTREASURY"), cfg.Treasury)
	s.Equal(domain.CertID(1), cfg.NextCertID)
}

// The setters check only that an authority is bound; any caller may use them.
func (s *ServiceSuite) TestSettersDoNotCompareCaller() {
	_, err := s.service.BindAuthority(s.ctx, testAuthority)
	s.Require().NoError(err)

	ok, err := s.service.SetMintFee(s.ctx, 0)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ServiceSuite) TestSetMintFeeBeyondStorableRange() {
	_, err := s.service.BindAuthority(s.ctx, testAuthority)
	s.Require().NoError(err)

	ok, err := s.service.SetMintFee(s.ctx, models.MaxStoredValue+1)
	s.False(ok)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	fee, err := s.service.PeekMintFee(s.ctx)
	s.Require().NoError(err)
	s.Equal(testFee, fee)

	ok, err = s.service.SetMintFee(s.ctx, models.MaxStoredValue)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ServiceSuite) TestSetTreasuryRequiresPrincipal() {
	_, err := s.service.BindAuthority(s.ctx, testAuthority)
	s.Require().NoError(err)

	ok, err := s.service.SetTreasury(s.ctx, "")
	s.False(ok)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
