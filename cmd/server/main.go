package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	certhandler "certreg/internal/certification/handler"
	certmetrics "certreg/internal/certification/metrics"
	"certreg/internal/certification/models"
	"certreg/internal/certification/ports"
	certservice "certreg/internal/certification/service"
	certstore "certreg/internal/certification/store"
	"certreg/internal/clock"
	clockhandler "certreg/internal/clock/handler"
	issuercache "certreg/internal/issuer/cache"
	issuerhandler "certreg/internal/issuer/handler"
	issuermetrics "certreg/internal/issuer/metrics"
	issuerservice "certreg/internal/issuer/service"
	issuerstore "certreg/internal/issuer/store"
	jwttoken "certreg/internal/jwt_token"
	paymentkafka "certreg/internal/payment/kafka"
	"certreg/internal/payment/ledger"
	"certreg/internal/platform/config"
	"certreg/internal/platform/httpserver"
	platformkafka "certreg/internal/platform/kafka"
	"certreg/internal/platform/logger"
	"certreg/internal/platform/metrics"
	"certreg/internal/platform/postgres"
	platformredis "certreg/internal/platform/redis"
	httptransport "certreg/internal/transport/http"
	"certreg/pkg/domain"
	audit "certreg/pkg/platform/audit"
	"certreg/pkg/platform/audit/publisher"
	auditmemory "certreg/pkg/platform/audit/store/memory"
	auditpostgres "certreg/pkg/platform/audit/store/postgres"
)

const (
	jwtAudience   = "certreg"
	shutdownGrace = 10 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)
	checks := map[string]httptransport.HealthCheck{}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		checks["postgres"] = db.PingContext
		log.Info("using postgres persistence")
	} else {
		log.Warn("DATABASE_URL not set, registry state is in memory only")
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
	}

	auditPublisher := publisher.NewPublisher(newAuditStore(db),
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
	)

	issuerOpts := []issuerservice.Option{
		issuerservice.WithLogger(log),
		issuerservice.WithAuditPublisher(auditPublisher),
		issuerservice.WithMetrics(issuermetrics.New(reg)),
	}
	if redisClient != nil {
		issuerOpts = append(issuerOpts, issuerservice.WithCache(issuercache.NewRedis(redisClient, cfg.Redis.CacheTTL)))
	}
	issuers := issuerservice.New(newIssuerStore(db), issuerOpts...)
	if err := issuers.Seed(ctx, cfg.IssuerAllowlist); err != nil {
		return err
	}

	payments, closePayments, err := newPaymentGateway(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closePayments()

	treasury, err := domain.ParsePrincipal(cfg.Registry.Treasury)
	if err != nil {
		return fmt.Errorf("REGISTRY_TREASURY: %w", err)
	}
	heightSource, heightHandler := newClock(cfg.Clock, log)
	certifications, err := certservice.New(
		newRegistry(db),
		heightSource,
		issuers,
		payments,
		models.DefaultConfig(cfg.Registry.MaxCerts, cfg.Registry.MintFee, treasury),
		certservice.WithLogger(log),
		certservice.WithAuditPublisher(auditPublisher),
		certservice.WithMetrics(certmetrics.New(reg)),
	)
	if err != nil {
		return err
	}

	if cfg.Server.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH not set, issuer allow-list and height routes are disabled")
	}
	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, jwtAudience)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        httpMetrics,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		AdminTokenHash: cfg.Server.AdminTokenHash,
		Certifications: certhandler.New(certifications, log),
		Issuers:        issuerhandler.New(issuers, log),
		Height:         heightHandler,
		HealthChecks:   checks,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting certreg", "addr", cfg.Server.Addr)
		return httpserver.Run(gctx, srv, shutdownGrace)
	})
	g.Go(func() error {
		<-gctx.Done()
		auditPublisher.Close()
		return nil
	})
	return g.Wait()
}

func newRegistry(db *sql.DB) certservice.Registry {
	if db == nil {
		return certstore.NewInMemory()
	}
	return certstore.NewPostgres(db)
}

func newIssuerStore(db *sql.DB) issuerservice.Store {
	if db == nil {
		return issuerstore.NewInMemory()
	}
	return issuerstore.NewPostgres(db)
}

func newAuditStore(db *sql.DB) audit.Store {
	if db == nil {
		return auditmemory.NewInMemoryStore()
	}
	return auditpostgres.New(db)
}

// newClock returns a manual clock, driven through the operator height
// routes, unless a genesis instant is configured. Interval clocks expose no
// height routes.
func newClock(cfg config.ClockConfig, log *slog.Logger) (ports.Clock, *clockhandler.Handler) {
	if cfg.Genesis.IsZero() {
		manual := clock.NewManual(cfg.StartHeight)
		return manual, clockhandler.New(manual, log)
	}
	return clock.NewInterval(cfg.Genesis, cfg.BlockInterval, cfg.StartHeight), nil
}

// newPaymentGateway publishes fee instructions to Kafka when brokers are
// configured and records them in process otherwise.
func newPaymentGateway(
	ctx context.Context,
	cfg config.Config,
	log *slog.Logger,
	checks map[string]httptransport.HealthCheck,
) (ports.PaymentGateway, func(), error) {
	client, err := platformkafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("KAFKA_BROKERS not set, fee instructions are recorded in process only")
		return ledger.New(), func() {}, nil
	}

	if err := platformkafka.EnsureTopic(ctx, client, cfg.Kafka.PaymentsTopic, 1); err != nil {
		log.Warn("could not ensure payments topic", "topic", cfg.Kafka.PaymentsTopic, "error", err)
	}
	gateway := paymentkafka.New(client, cfg.Kafka.PaymentsTopic,
		paymentkafka.WithLogger(log),
		paymentkafka.WithTimeout(cfg.Kafka.ProduceTimeout),
	)
	checks["payments"] = func(context.Context) error {
		if gateway.Degraded() {
			return errors.New("payment producer failing")
		}
		return nil
	}
	return gateway, client.Close, nil
}
