package service

import (
	"errors"
	"math"
	"slices"
	"strings"

	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
)

func ptr(v uint64) *uint64 {
	return &v
}

// =============================================================================
// Mint: success path
// =============================================================================

func (s *ServiceSuite) TestMintWorkedExample() {
	req := s.validRequest()

	s.Equal(domain.CertID(1), s.mint(req))
	s.Equal(domain.CertID(2), s.mint(req))
	s.Equal(domain.CertID(3), s.nextID())
}

func (s *ServiceSuite) TestMintStoresSubmittedFields() {
	req := s.validRequest()
	req.ExpiryDate = ptr(500)
	req.Subjects = []string{"Math", "Physics"}

	id := s.mint(req)

	owner, err := s.service.GetOwner(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(testTeacher, owner)

	record, err := s.service.GetRecord(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.Record{
		TeacherID:   req.TeacherID,
		Issuer:      req.Caller,
		DocHash:     req.DocHash,
		IssueDate:   req.IssueDate,
		ExpiryDate:  req.ExpiryDate,
		Subjects:    req.Subjects,
		IssuingBody: req.IssuingBody,
	}, *record)
}

func (s *ServiceSuite) TestMintDoesNotAliasRequest() {
	req := s.validRequest()
	id := s.mint(req)

	req.Subjects[0] = "Changed"
	req.DocHash[0] = 0xff

	record, err := s.service.GetRecord(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]string{"Math"}, record.Subjects)
	s.Equal(byte(0x01), record.DocHash[0])
}

func (s *ServiceSuite) TestMintReturnsPreCallNextID() {
	for range 5 {
		before := s.nextID()
		id := s.mint(s.validRequest())
		s.Equal(before, id)
		s.Equal(before+1, s.nextID())
	}
}

// =============================================================================
// Mint: validation order and boundaries
// =============================================================================

func (s *ServiceSuite) assertRejected(req models.MintRequest, want *models.MintError) {
	before := s.nextID()
	id, err := s.service.Mint(s.ctx, req)
	s.Zero(id)
	s.ErrorIs(err, want)
	s.Equal(before, s.nextID())
	exists, existsErr := s.registry.Exists(s.ctx, before)
	s.Require().NoError(existsErr)
	s.False(exists)
}

func (s *ServiceSuite) TestMintMaxCerts() {
	svc, err := New(s.registry, s.clock, s.mockOracle, s.mockPayments, models.DefaultConfig(3, testFee, testTreasury))
	s.Require().NoError(err)
	s.service = svc

	s.mint(s.validRequest())
	s.mint(s.validRequest())

	s.Run("next id equal to max is exceeded", func() {
		s.assertRejected(s.validRequest(), models.ErrMaxCertsExceeded)
	})

	s.Run("exceeded wins over every other check", func() {
		req := s.validRequest()
		req.DocHash = nil
		req.Subjects = nil
		s.assertRejected(req, models.ErrMaxCertsExceeded)
	})
}

func (s *ServiceSuite) TestMintDocHash() {
	req := s.validRequest()
	req.DocHash = []byte{}
	s.assertRejected(req, models.ErrInvalidDocHash)

	req.IssueDate = 0
	s.assertRejected(req, models.ErrInvalidDocHash)
}

func (s *ServiceSuite) TestMintIssueDate() {
	s.Run("before current height rejects", func() {
		req := s.validRequest()
		req.IssueDate = testHeight - 1
		s.assertRejected(req, models.ErrInvalidIssueDate)
	})

	s.Run("equal to current height succeeds", func() {
		req := s.validRequest()
		req.IssueDate = testHeight
		s.mint(req)
	})

	s.Run("height is read at call time", func() {
		s.clock.Set(testHeight + 10)
		req := s.validRequest()
		s.assertRejected(req, models.ErrInvalidIssueDate)
	})
}

func (s *ServiceSuite) TestMintExpiryDate() {
	s.Run("equal to issue date rejects", func() {
		req := s.validRequest()
		req.ExpiryDate = ptr(req.IssueDate)
		s.assertRejected(req, models.ErrInvalidExpiryDate)
	})

	s.Run("before issue date rejects", func() {
		req := s.validRequest()
		req.ExpiryDate = ptr(req.IssueDate - 1)
		s.assertRejected(req, models.ErrInvalidExpiryDate)
	})

	s.Run("one past issue date succeeds", func() {
		req := s.validRequest()
		req.ExpiryDate = ptr(req.IssueDate + 1)
		s.mint(req)
	})
}

// Values beyond the storable range are rejected before any fee moves, so
// every store backend gives the same answer.
func (s *ServiceSuite) TestMintDatesBeyondStorableRange() {
	s.Run("issue date", func() {
		req := s.validRequest()
		req.IssueDate = models.MaxStoredValue + 1
		req.ExpiryDate = nil
		s.assertRejected(req, models.ErrInvalidIssueDate)

		req.IssueDate = math.MaxUint64
		s.assertRejected(req, models.ErrInvalidIssueDate)
	})

	s.Run("expiry date", func() {
		req := s.validRequest()
		req.ExpiryDate = ptr(models.MaxStoredValue + 1)
		s.assertRejected(req, models.ErrInvalidExpiryDate)
	})

	s.Run("largest storable dates succeed", func() {
		req := s.validRequest()
		req.IssueDate = models.MaxStoredValue - 1
		req.ExpiryDate = ptr(models.MaxStoredValue)
		s.mint(req)
	})
}

func (s *ServiceSuite) TestMintSubjects() {
	subjects := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "Subject"
		}
		return out
	}

	for _, tc := range []struct {
		name     string
		subjects []string
		ok       bool
	}{
		{"none", subjects(0), false},
		{"nil", nil, false},
		{"one", subjects(1), true},
		{"ten", subjects(10), true},
		{"eleven", subjects(11), false},
		{"fifty characters", []string{strings.Repeat("a", 50)}, true},
		{"fifty-one characters", []string{strings.Repeat("a", 51)}, false},
		{"fifty multibyte characters", []string{strings.Repeat("é", 50)}, true},
		{"one long entry among valid ones", []string{"Math", strings.Repeat("a", 51)}, false},
		{"empty entry", []string{""}, true},
	} {
		s.Run(tc.name, func() {
			req := s.validRequest()
			req.Subjects = tc.subjects
			if tc.ok {
				s.mint(req)
				return
			}
			s.assertRejected(req, models.ErrInvalidSubjects)
		})
	}
}

func (s *ServiceSuite) TestMintIssuingBody() {
	for _, tc := range []struct {
		name string
		body string
		ok   bool
	}{
		{"empty", "", false},
		{"one character", "U", true},
		{"hundred characters", strings.Repeat("b", 100), true},
		{"hundred-one characters", strings.Repeat("b", 101), false},
		{"hundred multibyte characters", strings.Repeat("ü", 100), true},
	} {
		s.Run(tc.name, func() {
			req := s.validRequest()
			req.IssuingBody = tc.body
			if tc.ok {
				s.mint(req)
				return
			}
			s.assertRejected(req, models.ErrInvalidIssuingBody)
		})
	}
}

func (s *ServiceSuite) TestMintValidationPrecedesAuthorization() {
	req := s.validRequest()
	req.Caller = "SP9STRANGER"
	req.IssuingBody = ""
	// no oracle expectation: validation fails first
	s.assertRejected(req, models.ErrInvalidIssuingBody)
}

// =============================================================================
// Mint: authorization, duplicates and collaborators
// =============================================================================

func (s *ServiceSuite) TestMintUnauthorized() {
	req := s.validRequest()
	req.Caller = "SP9STRANGER"
	s.expectAuthorized(req.Caller, false)

	s.assertRejected(req, models.ErrNotAuthorized)
}

func (s *ServiceSuite) TestMintOracleFailureIsInternal() {
	s.mockOracle.EXPECT().IsAuthorized(gomock.Any(), testIssuer).Return(false, errors.New("allow-list unreachable"))

	id, err := s.service.Mint(s.ctx, s.validRequest())
	s.Zero(id)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.False(errors.Is(err, models.ErrNotAuthorized))
	s.Equal(domain.CertID(1), s.nextID())
}

func (s *ServiceSuite) TestMintAlreadyMinted() {
	// an entry left at the next id, e.g. by an out-of-band restore
	s.Require().NoError(s.registry.Insert(s.ctx, &models.Entry{
		ID:     1,
		Record: models.Record{TeacherID: "ST9OTHER", DocHash: []byte{1}, Subjects: []string{"X"}, IssuingBody: "B"},
		Owner:  "ST9OTHER",
	}))
	s.expectAuthorized(testIssuer, true)

	id, err := s.service.Mint(s.ctx, s.validRequest())
	s.Zero(id)
	s.ErrorIs(err, models.ErrAlreadyMinted)

	owner, err := s.service.GetOwner(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(domain.Principal("ST9OTHER"), owner)
}

func (s *ServiceSuite) TestMintFeeTransferFailure() {
	s.Run("declined", func() {
		s.expectAuthorized(testIssuer, true)
		s.mockPayments.EXPECT().Transfer(gomock.Any(), testFee, testIssuer, testTreasury).Return(false, nil)

		s.assertRejected(s.validRequest(), models.ErrFeeTransferFailed)
	})

	s.Run("errored", func() {
		cause := errors.New("broker down")
		s.expectAuthorized(testIssuer, true)
		s.mockPayments.EXPECT().Transfer(gomock.Any(), testFee, testIssuer, testTreasury).Return(false, cause)

		_, err := s.service.Mint(s.ctx, s.validRequest())
		s.ErrorIs(err, models.ErrFeeTransferFailed)
		s.ErrorIs(err, cause)

		var mintErr *models.MintError
		s.Require().ErrorAs(err, &mintErr)
		s.True(mintErr.Code.IsExternal())
	})
}

func (s *ServiceSuite) TestMintFeeConfirmationFailure() {
	s.expectAuthorized(testIssuer, true)
	s.mockPayments.EXPECT().Transfer(gomock.Any(), testFee, testIssuer, testTreasury).Return(true, nil)
	s.mockPayments.EXPECT().ConfirmFeePayment(gomock.Any(), testFee, testIssuer).Return(false, nil)

	s.assertRejected(s.validRequest(), models.ErrNftMintFailed)
}

func (s *ServiceSuite) TestMintUsesCurrentFeeAndTreasury() {
	_, err := s.service.BindAuthority(s.ctx, testAuthority)
	s.Require().NoError(err)
	_, err = s.service.SetMintFee(s.ctx, 42)
	s.Require().NoError(err)
	_, err = s.service.SetTreasury(s.ctx, "SP2NEWTREASURY")
	s.Require().NoError(err)

	s.expectAuthorized(testIssuer, true)
	gomock.InOrder(
		s.mockPayments.EXPECT().Transfer(gomock.Any(), uint64(42), testIssuer, domain.Principal("SP2NEWTREASURY")).Return(true, nil),
		s.mockPayments.EXPECT().ConfirmFeePayment(gomock.Any(), uint64(42), testIssuer).Return(true, nil),
	)

	id, err := s.service.Mint(s.ctx, s.validRequest())
	s.Require().NoError(err)
	s.Equal(domain.CertID(1), id)
}

func (s *ServiceSuite) TestConcurrentMintsGetDistinctIDs() {
	const n = 25
	s.mockOracle.EXPECT().IsAuthorized(gomock.Any(), testIssuer).Return(true, nil).Times(n)
	s.mockPayments.EXPECT().Transfer(gomock.Any(), testFee, testIssuer, testTreasury).Return(true, nil).Times(n)
	s.mockPayments.EXPECT().ConfirmFeePayment(gomock.Any(), testFee, testIssuer).Return(true, nil).Times(n)

	ids := make([]domain.CertID, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			id, err := s.service.Mint(s.ctx, s.validRequest())
			ids[i] = id
			return err
		})
	}
	s.Require().NoError(g.Wait())

	slices.Sort(ids)
	for i, id := range ids {
		s.Equal(domain.CertID(i+1), id)
	}
	s.Equal(domain.CertID(n+1), s.nextID())
}
