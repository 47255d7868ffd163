package testutil

import (
	"net/http"

	"certreg/pkg/domain"
	"certreg/pkg/requestcontext"
)

// WithCaller attaches principal to the request context the way the auth
// middleware does after a token validates. Malformed principals are ignored,
// which leaves the request unauthenticated.
func WithCaller(req *http.Request, principal string) *http.Request {
	if p, err := domain.ParsePrincipal(principal); err == nil {
		return req.WithContext(requestcontext.WithCaller(req.Context(), p))
	}
	return req
}
