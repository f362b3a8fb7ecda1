// Package asset persists media assets and their ownership partitions.
//
// Error contract for every store:
//   - sentinel.ErrNotFound when the asset does not exist
//   - sentinel.ErrAlreadyUsed when CreateIfAbsent hits an existing id
//   - the validate, mutate or record callback's error unchanged, with nothing
//     written
//   - wrapped errors for infrastructure failures
package asset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	"mediashare/pkg/platform/sentinel"
)

// InMemory keeps assets in a map guarded by one mutex. Reads and writes copy,
// so callers never share a partition with the store.
type InMemory struct {
	mu     sync.RWMutex
	assets map[id.AssetID]*models.MediaAsset
	order  []id.AssetID // sorted
}

func NewInMemory() *InMemory {
	return &InMemory{assets: make(map[id.AssetID]*models.MediaAsset)}
}

// CreateIfAbsent inserts asset unless its id is taken. record, when set, runs
// under the write lock once the id is known to be free; the asset is inserted
// only if it returns nil.
func (s *InMemory) CreateIfAbsent(_ context.Context, asset *models.MediaAsset, record func() error) error {
	if err := asset.Partition.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[asset.AssetID]; ok {
		return fmt.Errorf("asset %s: %w", asset.AssetID, sentinel.ErrAlreadyUsed)
	}
	if record != nil {
		if err := record(); err != nil {
			return err
		}
	}
	s.assets[asset.AssetID] = asset.Clone()

	i := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= asset.AssetID })
	s.order = append(s.order, "")
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = asset.AssetID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, assetID id.AssetID) (*models.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, sentinel.ErrNotFound)
	}
	return asset.Clone(), nil
}

// Execute validates and mutates a working copy under the write lock and
// commits it only if both callbacks succeed and the result keeps a valid
// partition.
func (s *InMemory) Execute(ctx context.Context, assetID id.AssetID, validate func(*models.MediaAsset) error, mutate func(*models.MediaAsset) error) (*models.MediaAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, sentinel.ErrNotFound)
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	if err := mutate(working); err != nil {
		return nil, err
	}
	if err := working.Partition.Validate(); err != nil {
		return nil, err
	}
	s.assets[assetID] = working
	return working.Clone(), nil
}

// List returns up to limit assets with ids strictly after the cursor.
func (s *InMemory) List(_ context.Context, after id.AssetID, limit int) ([]*models.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if after != "" {
		start = sort.Search(len(s.order), func(i int) bool { return s.order[i] > after })
	}
	end := min(start+limit, len(s.order))
	out := make([]*models.MediaAsset, 0, end-start)
	for _, assetID := range s.order[start:end] {
		out = append(out, s.assets[assetID].Clone())
	}
	return out, nil
}

// ListByOwner returns every asset where owner holds a stake, by asset id.
func (s *InMemory) ListByOwner(_ context.Context, owner id.OwnerID) ([]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var holdings []models.Holding
	for _, assetID := range s.order {
		asset := s.assets[assetID]
		if share := asset.ShareOf(owner); share > 0 {
			holdings = append(holdings, models.Holding{AssetID: assetID, Title: asset.Title, Share: share})
		}
	}
	return holdings, nil
}
