package service

import (
	"errors"

	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

// mintExpiring mints a token owned by testTeacher that expires at expiry.
func (s *ServiceSuite) mintExpiring(expiry uint64) domain.CertID {
	req := s.validRequest()
	req.ExpiryDate = ptr(expiry)
	return s.mint(req)
}

func (s *ServiceSuite) assertBurnRejected(id domain.CertID, caller domain.Principal, reason models.BurnRejectReason) {
	ok, err := s.service.Burn(s.ctx, id, caller)
	s.False(ok)
	s.ErrorIs(err, models.ErrBurnRejected)

	var rejected *models.BurnRejectedError
	s.Require().True(errors.As(err, &rejected))
	s.Equal(reason, rejected.Reason)
}

// =============================================================================
// IsExpired
// =============================================================================

func (s *ServiceSuite) TestIsExpired() {
	id := s.mintExpiring(200)

	s.Run("before expiry", func() {
		s.clock.Set(199)
		expired, err := s.service.IsExpired(s.ctx, id)
		s.Require().NoError(err)
		s.False(expired)
	})

	s.Run("at expiry is not yet expired", func() {
		s.clock.Set(200)
		expired, err := s.service.IsExpired(s.ctx, id)
		s.Require().NoError(err)
		s.False(expired)
	})

	s.Run("past expiry", func() {
		s.clock.Set(201)
		expired, err := s.service.IsExpired(s.ctx, id)
		s.Require().NoError(err)
		s.True(expired)
	})

	s.Run("absent token", func() {
		expired, err := s.service.IsExpired(s.ctx, 999)
		s.Require().NoError(err)
		s.False(expired)
	})
}

func (s *ServiceSuite) TestIsExpiredWithoutExpiry() {
	id := s.mint(s.validRequest())
	s.clock.Set(1 << 40)

	expired, err := s.service.IsExpired(s.ctx, id)
	s.Require().NoError(err)
	s.False(expired)
}

// =============================================================================
// Burn
// =============================================================================

func (s *ServiceSuite) TestBurnExpiredByOwner() {
	id := s.mintExpiring(200)
	s.clock.Set(201)

	ok, err := s.service.Burn(s.ctx, id, testTeacher)
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.service.GetRecord(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.GetOwner(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Run("identifier is not reused", func() {
		s.Equal(id+1, s.nextID())
	})

	s.Run("second burn is rejected", func() {
		s.assertBurnRejected(id, testTeacher, models.BurnNotOwner)
	})
}

func (s *ServiceSuite) TestBurnByNonOwnerEvenIfExpired() {
	id := s.mintExpiring(200)
	s.clock.Set(500)

	s.assertBurnRejected(id, "ST9STRANGER", models.BurnNotOwner)
	s.assertBurnRejected(id, testIssuer, models.BurnNotOwner)
	s.assertBurnRejected(id, "", models.BurnNotOwner)

	owner, err := s.service.GetOwner(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(testTeacher, owner)
}

func (s *ServiceSuite) TestBurnNotExpiredByOwner() {
	s.Run("before expiry", func() {
		id := s.mintExpiring(200)
		s.clock.Set(200)
		s.assertBurnRejected(id, testTeacher, models.BurnNotExpired)

		record, err := s.service.GetRecord(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(uint64(200), *record.ExpiryDate)
	})

	s.Run("no expiry never burns", func() {
		id := s.mint(models.MintRequest{
			TeacherID:   testTeacher,
			DocHash:     []byte{0x0a},
			IssueDate:   s.clock.CurrentHeight(),
			Subjects:    []string{"Art"},
			IssuingBody: "Academy",
			Caller:      testIssuer,
		})
		s.clock.Advance(1_000_000)
		s.assertBurnRejected(id, testTeacher, models.BurnNotExpired)
	})
}

func (s *ServiceSuite) TestBurnAbsentToken() {
	s.assertBurnRejected(42, testTeacher, models.BurnNotOwner)
}
