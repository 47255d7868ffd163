package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certreg/internal/certification/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/httputil"
	request "certreg/pkg/platform/middleware/request"
	"certreg/pkg/requestcontext"
)

// Service is the certification registry as seen by the HTTP layer.
type Service interface {
	BindAuthority(ctx context.Context, candidate domain.Principal) (bool, error)
	SetMintFee(ctx context.Context, fee uint64) (bool, error)
	SetTreasury(ctx context.Context, treasury domain.Principal) (bool, error)
	Mint(ctx context.Context, req models.MintRequest) (domain.CertID, error)
	Burn(ctx context.Context, id domain.CertID, caller domain.Principal) (bool, error)
	IsExpired(ctx context.Context, id domain.CertID) (bool, error)
	GetRecord(ctx context.Context, id domain.CertID) (*models.Record, error)
	GetOwner(ctx context.Context, id domain.CertID) (domain.Principal, error)
	VerifyOwnership(ctx context.Context, id domain.CertID, account domain.Principal) (bool, error)
	PeekNextID(ctx context.Context) (domain.CertID, error)
	PeekMintFee(ctx context.Context) (uint64, error)
	GetConfig(ctx context.Context) (*models.ConfigView, error)
}

// Handler serves the registry routes. Callers mount it behind the bearer
// token middleware, which places the caller principal in the context.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/authority", h.handleBindAuthority)
	r.Put("/admin/mint-fee", h.handleSetMintFee)
	r.Put("/admin/treasury", h.handleSetTreasury)

	r.Post("/certifications", h.handleMint)
	r.Get("/certifications/{id}", h.handleGetRecord)
	r.Get("/certifications/{id}/owner", h.handleGetOwner)
	r.Get("/certifications/{id}/ownership", h.handleVerifyOwnership)
	r.Get("/certifications/{id}/expired", h.handleIsExpired)
	r.Post("/certifications/{id}/burn", h.handleBurn)

	r.Get("/registry/next-id", h.handlePeekNextID)
	r.Get("/registry/mint-fee", h.handlePeekMintFee)
	r.Get("/registry/config", h.handleGetConfig)
}

// =============================================================================
// Admin gate
// =============================================================================

func (h *Handler) handleBindAuthority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req BindAuthorityRequest
	if !h.decode(w, r, &req) {
		return
	}
	candidate, err := domain.ParsePrincipal(req.Principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ok, err := h.service.BindAuthority(ctx, candidate)
	h.writeAdminResult(ctx, w, ok, err)
}

func (h *Handler) handleSetMintFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SetMintFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ok, err := h.service.SetMintFee(ctx, *req.Fee)
	h.writeAdminResult(ctx, w, ok, err)
}

func (h *Handler) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SetTreasuryRequest
	if !h.decode(w, r, &req) {
		return
	}
	treasury, err := domain.ParsePrincipal(req.Treasury)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ok, err := h.service.SetTreasury(ctx, treasury)
	h.writeAdminResult(ctx, w, ok, err)
}

// writeAdminResult renders a refused admin change as a false result with the
// status of its coded error.
func (h *Handler) writeAdminResult(ctx context.Context, w http.ResponseWriter, ok bool, err error) {
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, Result{OK: true, Value: ok})
	case errors.Is(err, models.ErrAlreadyBound), errors.Is(err, models.ErrNotConfigured):
		httputil.WriteJSON(w, dErrors.ToHTTPStatus(dErrors.CodeOf(err)), Result{OK: false, Value: false})
	default:
		h.writeServiceError(ctx, w, "admin operation failed", err)
	}
}

// =============================================================================
// Issuance and lifecycle
// =============================================================================

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing caller"))
		return
	}

	var body MintRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.ToModel(caller)
	if err == nil {
		var id domain.CertID
		id, err = h.service.Mint(ctx, req)
		if err == nil {
			httputil.WriteJSON(w, http.StatusCreated, Result{OK: true, Value: id})
			return
		}
	}

	var mintErr *models.MintError
	if !errors.As(err, &mintErr) {
		h.writeServiceError(ctx, w, "mint failed", err)
		return
	}
	httputil.WriteJSON(w, mintStatus(mintErr.Code), Result{OK: false, Value: uint32(mintErr.Code)})
}

// mintStatus separates rejected input from refusals and collaborator
// failures so clients can tell retryable outcomes apart.
func mintStatus(code models.ErrorCode) int {
	switch code {
	case models.CodeNotAuthorized:
		return http.StatusForbidden
	case models.CodeAlreadyMinted, models.CodeMaxCertsExceeded:
		return http.StatusConflict
	case models.CodeNftMintFailed, models.CodeFeeTransferFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}

	burned, err := h.service.Burn(ctx, id, requestcontext.Caller(ctx))
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, Result{OK: true, Value: burned})
	case errors.Is(err, models.ErrBurnRejected):
		httputil.WriteJSON(w, http.StatusConflict, Result{OK: false, Value: false})
	default:
		h.writeServiceError(ctx, w, "burn failed", err)
	}
}

func (h *Handler) handleIsExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}
	expired, err := h.service.IsExpired(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "expiry check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExpiredResponse{Expired: expired})
}

// =============================================================================
// Queries
// =============================================================================

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}
	record, err := h.service.GetRecord(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to get certification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(id, record))
}

func (h *Handler) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}
	owner, err := h.service.GetOwner(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to get owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{Owner: owner})
}

func (h *Handler) handleVerifyOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.certID(w, r)
	if !ok {
		return
	}
	account, err := domain.ParsePrincipal(r.URL.Query().Get("account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	verified, err := h.service.VerifyOwnership(ctx, id, account)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to verify ownership", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnershipResponse{Verified: verified})
}

func (h *Handler) handlePeekNextID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := h.service.PeekNextID(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to read next id", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, Result{OK: true, Value: id})
}

func (h *Handler) handlePeekMintFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fee, err := h.service.PeekMintFee(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to read mint fee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, Result{OK: true, Value: fee})
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := h.service.GetConfig(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to read registry config", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"path", r.URL.Path,
			"request_id", request.GetRequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) certID(w http.ResponseWriter, r *http.Request) (domain.CertID, bool) {
	id, err := domain.ParseCertID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
