// Package cache keeps read-through copies of assets. A cache never decides an
// outcome: misses and failures fall back to the store.
package cache

import (
	"context"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
)

// Cache is implemented by every tier. Get returns sentinel.ErrCacheMiss when
// the asset is absent. Set ignores an asset older than the cached version.
type Cache interface {
	Get(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, error)
	Set(ctx context.Context, asset *models.MediaAsset) error
	Invalidate(ctx context.Context, assetID id.AssetID) error
}

const keyPrefix = "mediashare:asset:"

func key(assetID id.AssetID) string {
	return keyPrefix + assetID.String()
}
