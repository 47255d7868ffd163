package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"certreg/internal/certification/models"
	"certreg/internal/certification/service"
	"certreg/internal/certification/store"
	"certreg/internal/clock"
	issuerservice "certreg/internal/issuer/service"
	issuerstore "certreg/internal/issuer/store"
	"certreg/internal/payment/ledger"
	"certreg/pkg/testutil"
)

const (
	issuer  = "SP1ISSUER"
	teacher = "ST1TEACHER"
)

type HandlerSuite struct {
	suite.Suite
	router   chi.Router
	clock    *clock.Manual
	payments *ledger.Gateway
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.build(10000)
}

// build wires the router over a fresh registry capped at maxCerts.
func (s *HandlerSuite) build(maxCerts uint64) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	issuers := issuerservice.New(issuerstore.NewInMemory())
	s.Require().NoError(issuers.Seed(context.Background(), []string{issuer}))

	s.clock = clock.NewManual(100)
	s.payments = ledger.New()
	svc, err := service.New(
		store.NewInMemory(),
		s.clock,
		issuers,
		s.payments,
		models.DefaultConfig(maxCerts, 500, "SP000TREASURY"),
	)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, logger).Register(s.router)
}

func (s *HandlerSuite) asCaller(req *http.Request, caller string) *http.Request {
	if caller != "" {
		req = testutil.WithCaller(req, caller)
	}
	return req
}

func (s *HandlerSuite) mintBody() map[string]any {
	return map[string]any{
		"teacher":      teacher,
		"doc_hash":     "deadbeef",
		"issue_date":   101,
		"expiry_date":  nil,
		"subjects":     []string{"Math"},
		"issuing_body": "University B",
	}
}

func (s *HandlerSuite) mint(body map[string]any, caller string) (int, *Result) {
	t := s.T()
	req := s.asCaller(testutil.NewJSONRequest(t, http.MethodPost, "/certifications", body), caller)
	rr := testutil.DoRequest(s.router, req)
	return rr.Code, testutil.UnmarshalResponse[Result](t, rr)
}

// =============================================================================
// Mint
// =============================================================================

func (s *HandlerSuite) TestMint() {
	status, res := s.mint(s.mintBody(), issuer)
	s.Equal(http.StatusCreated, status)
	s.True(res.OK)
	s.EqualValues(1, res.Value)

	status, res = s.mint(s.mintBody(), issuer)
	s.Equal(http.StatusCreated, status)
	s.EqualValues(2, res.Value)

	s.Len(s.payments.Transfers(), 2)
	s.Len(s.payments.Confirmations(), 2)
}

func (s *HandlerSuite) TestMintFailureCodes() {
	for _, tc := range []struct {
		name   string
		mutate func(body map[string]any)
		caller string
		status int
		code   models.ErrorCode
	}{
		{"malformed teacher", func(b map[string]any) { b["teacher"] = "not a principal" }, issuer, http.StatusBadRequest, models.CodeInvalidTeacher},
		{"non-hex doc hash", func(b map[string]any) { b["doc_hash"] = "zz" }, issuer, http.StatusBadRequest, models.CodeInvalidDocHash},
		{"empty doc hash", func(b map[string]any) { b["doc_hash"] = "" }, issuer, http.StatusBadRequest, models.CodeInvalidDocHash},
		{"past issue date", func(b map[string]any) { b["issue_date"] = 99 }, issuer, http.StatusBadRequest, models.CodeInvalidIssueDate},
		{"issue date beyond storable range", func(b map[string]any) { b["issue_date"] = uint64(1) << 63 }, issuer, http.StatusBadRequest, models.CodeInvalidIssueDate},
		{"expiry at issue date", func(b map[string]any) { b["expiry_date"] = 101 }, issuer, http.StatusBadRequest, models.CodeInvalidExpiryDate},
		{"no subjects", func(b map[string]any) { b["subjects"] = []string{} }, issuer, http.StatusBadRequest, models.CodeInvalidSubjects},
		{"empty issuing body", func(b map[string]any) { b["issuing_body"] = "" }, issuer, http.StatusBadRequest, models.CodeInvalidIssuingBody},
		{"unauthorized caller", func(map[string]any) {}, "SP9STRANGER", http.StatusForbidden, models.CodeNotAuthorized},
	} {
		s.Run(tc.name, func() {
			body := s.mintBody()
			tc.mutate(body)
			status, res := s.mint(body, tc.caller)
			s.Equal(tc.status, status)
			s.False(res.OK)
			s.EqualValues(tc.code, res.Value)
		})
	}
}

func (s *HandlerSuite) TestMintFullRegistryWinsOverBadDocHash() {
	// NextCertID starts at 1, so a ceiling of 1 rejects the first mint.
	s.build(1)

	for _, raw := range []string{"zz", "abc", ""} {
		body := s.mintBody()
		body["doc_hash"] = raw
		status, res := s.mint(body, issuer)
		s.Equal(http.StatusConflict, status, raw)
		s.Equal(Result{OK: false, Value: float64(models.CodeMaxCertsExceeded)}, *res, raw)
	}
	s.Empty(s.payments.Transfers())
}

func (s *HandlerSuite) TestMintPaymentFailures() {
	s.payments.DeclineTransfers(true)
	status, res := s.mint(s.mintBody(), issuer)
	s.Equal(http.StatusPaymentRequired, status)
	s.EqualValues(models.CodeFeeTransferFailed, res.Value)

	s.payments.DeclineTransfers(false)
	s.payments.DeclineConfirmations(true)
	status, res = s.mint(s.mintBody(), issuer)
	s.Equal(http.StatusPaymentRequired, status)
	s.EqualValues(models.CodeNftMintFailed, res.Value)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/next-id"))
	testutil.AssertStatusOK(s.T(), rr)
	s.EqualValues(1, testutil.UnmarshalResponse[Result](s.T(), rr).Value)
}

func (s *HandlerSuite) TestMintRequiresCallerAndValidJSON() {
	t := s.T()

	s.Run("no caller", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/certifications", s.mintBody()))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("malformed json", func() {
		req := s.asCaller(testutil.NewRequestWithBody(t, http.MethodPost, "/certifications", "{"), issuer)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown field", func() {
		body := s.mintBody()
		body["owner"] = teacher
		req := s.asCaller(testutil.NewJSONRequest(t, http.MethodPost, "/certifications", body), issuer)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

// =============================================================================
// Queries
// =============================================================================

func (s *HandlerSuite) TestQueries() {
	t := s.T()
	body := s.mintBody()
	body["expiry_date"] = 200
	_, res := s.mint(body, issuer)
	s.Require().True(res.OK)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/1"))
	testutil.AssertStatusOK(t, rr)
	record := testutil.UnmarshalResponse[RecordResponse](t, rr)
	s.Equal("deadbeef", record.DocHash)
	s.EqualValues(issuer, record.Issuer)
	s.EqualValues(teacher, record.TeacherID)
	s.Require().NotNil(record.ExpiryDate)
	s.Equal(uint64(200), *record.ExpiryDate)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/1/owner"))
	testutil.AssertStatusOK(t, rr)
	s.EqualValues(teacher, testutil.UnmarshalResponse[OwnerResponse](t, rr).Owner)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/1/ownership?account="+teacher))
	testutil.AssertStatusOK(t, rr)
	s.True(testutil.UnmarshalResponse[OwnershipResponse](t, rr).Verified)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/1/ownership?account="+issuer))
	s.False(testutil.UnmarshalResponse[OwnershipResponse](t, rr).Verified)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/1/expired"))
	s.False(testutil.UnmarshalResponse[ExpiredResponse](t, rr).Expired)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/registry/mint-fee"))
	s.EqualValues(500, testutil.UnmarshalResponse[Result](t, rr).Value)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/registry/config"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "next_cert_id", float64(2))

	s.Run("absent token", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/9"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/0"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})
}

// =============================================================================
// Burn
// =============================================================================

func (s *HandlerSuite) TestBurn() {
	t := s.T()
	body := s.mintBody()
	body["expiry_date"] = 200
	_, res := s.mint(body, issuer)
	s.Require().True(res.OK)

	burn := func(caller string) (int, *Result) {
		req := s.asCaller(testutil.NewRequest(t, http.MethodPost, "/certifications/1/burn"), caller)
		rr := testutil.DoRequest(s.router, req)
		return rr.Code, testutil.UnmarshalResponse[Result](t, rr)
	}

	status, res := burn(teacher)
	s.Equal(http.StatusConflict, status)
	s.Equal(Result{OK: false, Value: false}, *res)

	s.clock.Set(201)
	status, res = burn(issuer)
	s.Equal(http.StatusConflict, status)
	s.Equal(Result{OK: false, Value: false}, *res)

	status, res = burn(teacher)
	s.Equal(http.StatusOK, status)
	s.Equal(Result{OK: true, Value: true}, *res)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/certifications/1/owner"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

// =============================================================================
// Admin gate
// =============================================================================

func (s *HandlerSuite) TestAdminGate() {
	t := s.T()
	put := func(path string, body any) (int, *Result) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPut, path, body))
		return rr.Code, testutil.UnmarshalResponse[Result](t, rr)
	}
	bind := func(principal string) (int, *Result) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/admin/authority",
			map[string]string{"principal": principal}))
		return rr.Code, testutil.UnmarshalResponse[Result](t, rr)
	}

	status, res := put("/admin/mint-fee", map[string]any{"fee": 10})
	s.Equal(http.StatusPreconditionFailed, status)
	s.Equal(Result{OK: false, Value: false}, *res)

	status, _ = put("/admin/treasury", map[string]string{"treasury": "SP2NEWTREASURY"})
	s.Equal(http.StatusPreconditionFailed, status)

	status, res = bind("SP1ADMIN")
	s.Equal(http.StatusOK, status)
	s.Equal(Result{OK: true, Value: true}, *res)

	status, res = bind("SP2OTHER")
	s.Equal(http.StatusConflict, status)
	s.Equal(Result{OK: false, Value: false}, *res)

	status, res = put("/admin/mint-fee", map[string]any{"fee": 10})
	s.Equal(http.StatusOK, status)
	s.True(res.OK)

	status, _ = put("/admin/treasury", map[string]string{"treasury": "SP2NEWTREASURY"})
	s.Equal(http.StatusOK, status)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/registry/mint-fee"))
	s.EqualValues(10, testutil.UnmarshalResponse[Result](t, rr).Value)

	s.Run("missing fee", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPut, "/admin/mint-fee", map[string]any{}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}
