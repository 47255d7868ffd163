// Package handler exposes the manual clock to operators so expiry can move
// forward in deployments without a genesis-driven clock.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "certreg/pkg/domain-errors"
	"certreg/pkg/platform/httputil"
	request "certreg/pkg/platform/middleware/request"
)

// Clock is the settable height source behind the routes.
type Clock interface {
	CurrentHeight() uint64
	Set(height uint64) uint64
}

type SetHeightRequest struct {
	Height *uint64 `json:"height"`
}

func (r *SetHeightRequest) Validate() error {
	if r.Height == nil {
		return dErrors.New(dErrors.CodeValidation, "height is required")
	}
	return nil
}

type HeightResponse struct {
	Height uint64 `json:"height"`
}

// Handler serves GET and PUT /admin/height. Callers mount it behind the
// admin token middleware.
type Handler struct {
	clock  Clock
	logger *slog.Logger
}

func New(clock Clock, logger *slog.Logger) *Handler {
	return &Handler{clock: clock, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/height", h.handleGet)
	r.Put("/admin/height", h.handleSet)
}

func (h *Handler) handleGet(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HeightResponse{Height: h.clock.CurrentHeight()})
}

// handleSet moves the height forward. A target below the current height is
// a conflict: heights never decrease.
func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SetHeightRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	previous := h.clock.CurrentHeight()
	if *req.Height < previous {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "height cannot decrease"))
		return
	}
	height := h.clock.Set(*req.Height)

	h.logger.InfoContext(ctx, "height set",
		"event", "height_set",
		"log_type", "audit",
		"request_id", request.GetRequestID(ctx),
		"previous", previous,
		"height", height,
	)
	httputil.WriteJSON(w, http.StatusOK, HeightResponse{Height: height})
}
