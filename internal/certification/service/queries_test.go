package service

import (
	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// =============================================================================
// Queries
// =============================================================================

func (s *ServiceSuite) TestQueriesOnEmptyRegistry() {
	id, err := s.service.PeekNextID(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.CertID(1), id)

	fee, err := s.service.PeekMintFee(s.ctx)
	s.Require().NoError(err)
	s.Equal(testFee, fee)

	cfg, err := s.service.GetConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(&models.ConfigView{
		Treasury:   testTreasury,
		MintFee:    testFee,
		MaxCerts:   10000,
		NextCertID: 1,
	}, cfg)

	_, err = s.service.GetRecord(s.ctx, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.GetOwner(s.ctx, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestVerifyOwnership() {
	id := s.mint(s.validRequest())

	for _, tc := range []struct {
		name    string
		id      domain.CertID
		account domain.Principal
		want    bool
	}{
		{"owner", id, testTeacher, true},
		{"issuer is not owner", id, testIssuer, false},
		{"empty account", id, "", false},
		{"absent token", id + 1, testTeacher, false},
	} {
		s.Run(tc.name, func() {
			ok, err := s.service.VerifyOwnership(s.ctx, tc.id, tc.account)
			s.Require().NoError(err)
			s.Equal(tc.want, ok)
		})
	}
}
