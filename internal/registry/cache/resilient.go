package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	"mediashare/pkg/platform/circuit"
	"mediashare/pkg/platform/sentinel"
)

// Resilient fronts a shared primary (Redis) with a local fallback. After
// repeated primary failures the breaker opens and reads are served locally
// until the primary answers cleanly again. Writes and invalidations go to both
// tiers; keys whose primary write failed are invalidated again on recovery so
// the primary cannot serve an asset older than the last change.
type Resilient struct {
	primary  Cache
	fallback Cache
	breaker  *circuit.Breaker
	logger   *slog.Logger

	mu    sync.Mutex
	stale map[id.AssetID]struct{}
}

func NewResilient(primary, fallback Cache, breaker *circuit.Breaker, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
		stale:    make(map[id.AssetID]struct{}),
	}
}

func (c *Resilient) Get(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, error) {
	asset, err := c.primary.Get(ctx, assetID)
	if err != nil && !errors.Is(err, sentinel.ErrCacheMiss) {
		c.recordFailure(ctx, err)
		return c.fallback.Get(ctx, assetID)
	}

	usePrimary, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "cache circuit closed", "breaker", c.breaker.Name())
		c.replayInvalidations(ctx)
		// The value read above may predate a change made during the outage.
		return c.fallback.Get(ctx, assetID)
	}
	if usePrimary {
		return asset, err
	}
	return c.fallback.Get(ctx, assetID)
}

func (c *Resilient) Set(ctx context.Context, asset *models.MediaAsset) error {
	_ = c.fallback.Set(ctx, asset)
	if err := c.primary.Set(ctx, asset); err != nil {
		c.markStale(asset.AssetID)
		c.recordFailure(ctx, err)
		return err
	}
	return nil
}

func (c *Resilient) Invalidate(ctx context.Context, assetID id.AssetID) error {
	_ = c.fallback.Invalidate(ctx, assetID)
	if err := c.primary.Invalidate(ctx, assetID); err != nil {
		c.markStale(assetID)
		c.recordFailure(ctx, err)
		return err
	}
	return nil
}

func (c *Resilient) markStale(assetID id.AssetID) {
	c.mu.Lock()
	c.stale[assetID] = struct{}{}
	c.mu.Unlock()
}

func (c *Resilient) replayInvalidations(ctx context.Context) {
	c.mu.Lock()
	pending := c.stale
	c.stale = make(map[id.AssetID]struct{})
	c.mu.Unlock()

	for assetID := range pending {
		if err := c.primary.Invalidate(ctx, assetID); err != nil {
			c.markStale(assetID)
		}
	}
}

func (c *Resilient) recordFailure(ctx context.Context, err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "cache circuit opened, serving from local tier",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}
