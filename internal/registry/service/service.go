package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mediashare/internal/registry/metrics"
	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	"mediashare/pkg/platform/audit"
	"mediashare/pkg/platform/tx"
)

// Store persists assets and serializes mutations per asset. The record and
// mutate callbacks run inside the store's critical section before the write
// becomes visible; an error from either leaves the store unchanged.
type Store interface {
	CreateIfAbsent(ctx context.Context, asset *models.MediaAsset, record func() error) error
	FindByID(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, error)
	Execute(ctx context.Context, assetID id.AssetID, validate func(*models.MediaAsset) error, mutate func(*models.MediaAsset) error) (*models.MediaAsset, error)
	List(ctx context.Context, after id.AssetID, limit int) ([]*models.MediaAsset, error)
	ListByOwner(ctx context.Context, owner id.OwnerID) ([]models.Holding, error)
}

// Cache holds read-through copies of assets. Set must not replace a newer
// version. Failures never fail an operation.
type Cache interface {
	Get(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, error)
	Set(ctx context.Context, asset *models.MediaAsset) error
	Invalidate(ctx context.Context, assetID id.AssetID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// StoreTx groups a store mutation with its audit record.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service orchestrates asset registration and share transfers.
type Service struct {
	store   Store
	cache   Cache
	tx      StoreTx
	logger  *slog.Logger
	auditor *auditEmitter
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor.publisher = publisher
	}
}

func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithTx sets the transaction boundary. Pair a PostgresRunner with the
// Postgres store; the default LockRunner suits the in-memory store.
func WithTx(runner StoreTx) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		auditor: &auditEmitter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tx == nil {
		s.tx = tx.NewLockRunner()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("mediashare/internal/registry/service")
	}
	s.auditor.logger = s.logger
	return s
}
