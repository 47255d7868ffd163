package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certreg/internal/issuer/models"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/httputil"
	request "certreg/pkg/platform/middleware/request"
)

// Service defines the allow-list operations exposed to operators.
type Service interface {
	Add(ctx context.Context, principal domain.Principal, reason string) (*models.Entry, error)
	Remove(ctx context.Context, principal domain.Principal) error
	List(ctx context.Context) ([]*models.Entry, error)
}

// Handler serves the issuer allow-list admin routes. Callers mount it behind
// the admin token middleware.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/issuers", h.handleAdd)
	r.Get("/admin/issuers", h.handleList)
	r.Delete("/admin/issuers/{principal}", h.handleRemove)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.AddRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid add issuer request",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	principal, err := domain.ParsePrincipal(req.Principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.service.Add(ctx, principal, req.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to add issuer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.service.List(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list issuers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ListResponse{Issuers: entries})
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Remove(ctx, principal); err != nil {
		h.writeServiceError(ctx, w, "failed to remove issuer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
