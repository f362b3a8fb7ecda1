package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mediashare/internal/auth/token"
	"mediashare/internal/platform/config"
	"mediashare/internal/platform/httpserver"
	"mediashare/internal/platform/kafka"
	"mediashare/internal/platform/metrics"
	"mediashare/internal/platform/postgres"
	platformredis "mediashare/internal/platform/redis"
	"mediashare/internal/registry/cache"
	"mediashare/internal/registry/handler"
	registrymetrics "mediashare/internal/registry/metrics"
	"mediashare/internal/registry/service"
	assetstore "mediashare/internal/registry/store/asset"
	"mediashare/pkg/platform/audit"
	"mediashare/pkg/platform/audit/outbox"
	"mediashare/pkg/platform/audit/publishers/compliance"
	auditmemory "mediashare/pkg/platform/audit/store/memory"
	auditpostgres "mediashare/pkg/platform/audit/store/postgres"
	"mediashare/pkg/platform/circuit"
	"mediashare/pkg/platform/middleware/metadata"
	"mediashare/pkg/platform/middleware/request"
	"mediashare/pkg/platform/tx"
)

const (
	auditTopicPartitions  = 6
	auditTopicReplication = 1
)

// app holds everything run needs and the resources Close releases.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	handler *handler.Handler
	checks  map[string]httpserver.Check
	relay   *outbox.Relay
	closers []func() error
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		checks:  map[string]httpserver.Check{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, runner, auditStore, err := a.buildStorage(ctx)
	if err != nil {
		return nil, err
	}
	assetCache, err := a.buildCache(ctx)
	if err != nil {
		return nil, err
	}

	publisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(a.metrics.Registry)),
	)
	registry := service.New(store,
		service.WithLogger(log),
		service.WithMetrics(registrymetrics.New(a.metrics.Registry)),
		service.WithAuditPublisher(publisher),
		service.WithCache(assetCache),
		service.WithTx(runner),
	)

	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.TokenTTL)
	a.handler = handler.New(registry, token.NewMiddlewareAdapter(tokens), log)
	return a, nil
}

// buildStorage picks Postgres with the transactional outbox when a database
// is configured, and in-memory stores otherwise.
func (a *app) buildStorage(ctx context.Context) (service.Store, service.StoreTx, audit.Store, error) {
	if a.cfg.Database.URL == "" {
		a.log.Warn("no database configured; using in-memory registry")
		return assetstore.NewInMemory(), tx.NewLockRunner(), auditmemory.NewInMemoryStore(), nil
	}

	db, err := postgres.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := postgres.Migrate(db); err != nil {
		return nil, nil, nil, err
	}
	a.checks["postgres"] = db.PingContext

	auditStore := auditpostgres.New(db)
	if err := a.buildRelay(ctx, auditStore); err != nil {
		return nil, nil, nil, err
	}
	return assetstore.NewPostgres(db), tx.NewPostgresRunner(db), auditStore, nil
}

func (a *app) buildRelay(ctx context.Context, source outbox.Source) error {
	client, err := kafka.NewClient(ctx, a.cfg.Kafka)
	if errors.Is(err, kafka.ErrDisabled) {
		a.log.Warn("no kafka brokers configured; audit outbox will not be relayed")
		return nil
	}
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { client.Close(); return nil })
	a.checks["kafka"] = client.Ping

	if err := outbox.EnsureTopic(ctx, kafka.NewAdmin(client), a.cfg.Kafka.AuditTopic, auditTopicPartitions, auditTopicReplication); err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}
	a.relay = outbox.NewRelay(source, client, a.cfg.Kafka.AuditTopic,
		outbox.WithLogger(a.log),
		outbox.WithMetrics(outbox.NewMetrics(a.metrics.Registry)),
		outbox.WithInterval(a.cfg.Kafka.OutboxPollInterval),
		outbox.WithBatchSize(a.cfg.Kafka.OutboxBatchSize),
	)
	return nil
}

// buildCache layers Redis over the in-process cache behind a breaker, or
// uses the in-process cache alone.
func (a *app) buildCache(ctx context.Context) (service.Cache, error) {
	local := cache.NewLocal(a.cfg.Cache.TTL)
	client, err := platformredis.NewClient(ctx, a.cfg.Redis)
	if errors.Is(err, platformredis.ErrDisabled) {
		return local, nil
	}
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.checks["redis"] = platformredis.Ping(client)

	breaker := circuit.New("asset-cache")
	return cache.NewResilient(cache.NewRedis(client, a.cfg.Cache.TTL), local, breaker, a.log), nil
}

// Router is the public API with the full middleware chain.
func (a *app) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(a.log))
	r.Use(request.RequestID)
	r.Use(metadata.Middleware)
	r.Use(request.Clock(nil))
	r.Use(request.Logger(a.log, a.metrics))
	r.Use(request.Timeout(a.cfg.Server.RequestTimeout))
	r.Use(request.ContentTypeJSON)

	httpserver.RegisterHealth(r, a.checks)
	a.handler.Register(r)
	return r
}

func (a *app) MetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", a.metrics.Handler())
	return r
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
