package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	certhandler "certreg/internal/certification/handler"
	clockhandler "certreg/internal/clock/handler"
	issuerhandler "certreg/internal/issuer/handler"
	"certreg/internal/platform/metrics"
	"certreg/pkg/platform/httputil"
	adminmw "certreg/pkg/platform/middleware/admin"
	authmw "certreg/pkg/platform/middleware/auth"
	"certreg/pkg/platform/middleware/metadata"
	request "certreg/pkg/platform/middleware/request"
	"certreg/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces NewRouter mounts. Metrics, Issuers, Height and
// HealthChecks are optional; operator routes are only mounted when
// AdminTokenHash is set.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Validator      authmw.JWTValidator
	AdminTokenHash string
	Certifications *certhandler.Handler
	Issuers        *issuerhandler.Handler
	Height         *clockhandler.Handler
	HealthChecks   map[string]HealthCheck
}

// NewRouter wires the public endpoints. Registry routes require a bearer
// token; allow-list and height routes require the operator token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if d.Metrics != nil {
		r.Use(d.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/health", healthHandler(d.HealthChecks))

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Validator, d.Logger))
		d.Certifications.Register(r)
	})

	if d.AdminTokenHash != "" {
		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(d.AdminTokenHash, d.Logger))
			if d.Issuers != nil {
				d.Issuers.Register(r)
			}
			if d.Height != nil {
				d.Height.Register(r)
			}
		})
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
