package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	"mediashare/pkg/platform/sentinel"
)

// Local is an in-process cache. Entries are cloned in and out.
type Local struct {
	mu    sync.Mutex // serializes Set's version check with its write
	items *gocache.Cache
}

func NewLocal(ttl time.Duration) *Local {
	return &Local{items: gocache.New(ttl, 2*ttl)}
}

func (c *Local) Get(_ context.Context, assetID id.AssetID) (*models.MediaAsset, error) {
	v, ok := c.items.Get(key(assetID))
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, sentinel.ErrCacheMiss)
	}
	return v.(*models.MediaAsset).Clone(), nil
}

// Set keeps whichever of the cached and given asset has the higher version.
func (c *Local) Set(_ context.Context, asset *models.MediaAsset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.items.Get(key(asset.AssetID)); ok && v.(*models.MediaAsset).Version > asset.Version {
		return nil
	}
	c.items.SetDefault(key(asset.AssetID), asset.Clone())
	return nil
}

func (c *Local) Invalidate(_ context.Context, assetID id.AssetID) error {
	c.items.Delete(key(assetID))
	return nil
}
