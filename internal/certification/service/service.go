package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certreg/internal/certification/metrics"
	"certreg/internal/certification/models"
	"certreg/internal/certification/ports"
	"certreg/pkg/attrs"
	"certreg/pkg/domain"
	audit "certreg/pkg/platform/audit"
	"certreg/pkg/requestcontext"
)

const tracerName = "certreg/internal/certification/service"

// Registry is the persistence the service needs: direct reads plus the
// transaction boundary that every mutation runs in.
type Registry interface {
	ports.Store
	ports.ConfigStore
	ports.RegistryTx
}

// Service implements the admin gate, the issuance and lifecycle engines and
// the read-only queries over one registry.
type Service struct {
	registry Registry
	clock    ports.Clock
	oracle   ports.AuthorizationOracle
	payments ports.PaymentGateway
	// defaults describe a registry that has never been written.
	defaults models.RegistryConfig

	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(
	registry Registry,
	clock ports.Clock,
	oracle ports.AuthorizationOracle,
	payments ports.PaymentGateway,
	defaults models.RegistryConfig,
	opts ...Option,
) (*Service, error) {
	switch {
	case registry == nil:
		return nil, errors.New("registry is required")
	case clock == nil:
		return nil, errors.New("clock is required")
	case oracle == nil:
		return nil, errors.New("authorization oracle is required")
	case payments == nil:
		return nil, errors.New("payment gateway is required")
	}

	s := &Service{
		registry: registry,
		clock:    clock,
		oracle:   oracle,
		payments: payments,
		defaults: defaults.Clone(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "certification."+name)
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor domain.Principal, subject, decision string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		args := append(attributes,
			"actor", actor.String(),
			"subject", subject,
			"decision", decision,
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
		Actor:     actor,
		Subject:   subject,
		Action:    string(event),
		Decision:  decision,
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: requestID,
		Timestamp: requestcontext.Now(ctx),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event),
			"request_id", requestID,
			"error", err,
		)
	}
}
