package service

import (
	"context"
	"errors"
	"log/slog"

	"certreg/internal/issuer/metrics"
	"certreg/internal/issuer/models"
	"certreg/pkg/attrs"
	"certreg/pkg/domain"
	dErrors "certreg/pkg/domain-errors"
	audit "certreg/pkg/platform/audit"
	"certreg/pkg/platform/sentinel"
	"certreg/pkg/requestcontext"
)

type Store interface {
	Add(ctx context.Context, entry *models.Entry) error
	Remove(ctx context.Context, principal domain.Principal) error
	Contains(ctx context.Context, principal domain.Principal) (bool, error)
	List(ctx context.Context) ([]*models.Entry, error)
}

// Cache holds recent authorization answers. Implementations report a miss
// with found=false.
type Cache interface {
	Get(ctx context.Context, principal domain.Principal) (allowed bool, found bool, err error)
	Set(ctx context.Context, principal domain.Principal, allowed bool) error
	Invalidate(ctx context.Context, principal domain.Principal) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages the issuer allow-list and answers whether a principal may
// mint certifications.
type Service struct {
	store          Store
	cache          Cache
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAuthorized reports whether principal is on the allow-list. Cache failures
// fall through to the store.
func (s *Service) IsAuthorized(ctx context.Context, principal domain.Principal) (bool, error) {
	if principal.IsZero() {
		return false, nil
	}

	if s.cache != nil {
		allowed, found, err := s.cache.Get(ctx, principal)
		switch {
		case err != nil:
			s.metrics.IncCacheError()
			s.warn(ctx, "issuer cache read failed", "principal", principal, "error", err)
		case found:
			s.metrics.IncCacheHit()
			return allowed, nil
		default:
			s.metrics.IncCacheMiss()
		}
	}

	allowed, err := s.store.Contains(ctx, principal)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer allow-list")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, principal, allowed); err != nil {
			s.metrics.IncCacheError()
			s.warn(ctx, "issuer cache write failed", "principal", principal, "error", err)
		}
	}
	return allowed, nil
}

// Add places principal on the allow-list, replacing any previous reason.
func (s *Service) Add(ctx context.Context, principal domain.Principal, reason string) (*models.Entry, error) {
	entry, err := models.NewEntry(principal, reason, actorFrom(ctx), requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Add(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add issuer")
	}
	if err := s.invalidate(ctx, principal); err != nil {
		return nil, err
	}

	s.metrics.IncChange("add")
	s.logAudit(ctx, audit.EventIssuerAdded, principal, "reason", entry.Reason)
	return entry, nil
}

// Remove takes principal off the allow-list.
func (s *Service) Remove(ctx context.Context, principal domain.Principal) error {
	if err := s.store.Remove(ctx, principal); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "issuer not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove issuer")
	}
	if err := s.invalidate(ctx, principal); err != nil {
		return err
	}

	s.metrics.IncChange("remove")
	s.logAudit(ctx, audit.EventIssuerRemoved, principal)
	return nil
}

func (s *Service) List(ctx context.Context) ([]*models.Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	if entries == nil {
		entries = []*models.Entry{}
	}
	return entries, nil
}

// Seed adds every principal in raw, rejecting the whole batch if any entry
// is malformed.
func (s *Service) Seed(ctx context.Context, raw []string) error {
	principals := make([]domain.Principal, 0, len(raw))
	for _, r := range raw {
		p, err := domain.ParsePrincipal(r)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid issuer in allow-list seed")
		}
		principals = append(principals, p)
	}
	for _, p := range principals {
		if _, err := s.Add(ctx, p, "seeded from configuration"); err != nil {
			return err
		}
	}
	return nil
}

// invalidate drops the cached answer. A failure is surfaced because a stale
// positive answer would keep a removed issuer authorized until the TTL ends.
func (s *Service) invalidate(ctx context.Context, principal domain.Principal) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, principal); err != nil {
		s.metrics.IncCacheError()
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "allow-list updated but cache invalidation failed")
	}
	return nil
}

func actorFrom(ctx context.Context) domain.Principal {
	if caller := requestcontext.Caller(ctx); !caller.IsZero() {
		return caller
	}
	return models.OperatorActor
}

func (s *Service) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, append(args, "request_id", requestcontext.RequestID(ctx))...)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, principal domain.Principal, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		args := append(attributes,
			"principal", principal.String(),
			"request_id", requestID,
			"event", string(event),
			"log_type", "audit",
		)
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Actor:     actorFrom(ctx),
		Subject:   principal.String(),
		Action:    string(event),
		Decision:  "applied",
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: requestID,
		Timestamp: requestcontext.Now(ctx),
	}); err != nil {
		s.warn(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
