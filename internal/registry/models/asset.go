package models

import (
	"time"

	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
)

// MediaAsset is the registry entity for one media asset.
//
// Invariants:
//   - AssetID, Title and Creator are immutable after construction
//   - Partition satisfies Partition.Validate: shares sum to FullOwnership,
//     no share is zero, no owner appears twice
//   - Partition is only changed through ApplyTransfer
//
// Creator is provenance only. After creation the creator holds no privilege
// beyond whatever stake it still has in Partition.
type MediaAsset struct {
	AssetID   id.AssetID `json:"asset_id"`
	Title     string     `json:"title"`
	Creator   id.OwnerID `json:"creator"`
	Partition Partition  `json:"partition"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewMediaAsset registers a new asset wholly owned by its creator.
// Uniqueness of assetID is the store's concern.
func NewMediaAsset(assetID id.AssetID, title string, creator id.OwnerID, now time.Time) (*MediaAsset, error) {
	if assetID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "asset id cannot be empty")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "title cannot be empty")
	}
	if creator.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "creator cannot be empty")
	}
	return &MediaAsset{
		AssetID:   assetID,
		Title:     title,
		Creator:   creator,
		Partition: Partition{{Owner: creator, Share: FullOwnership}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns a deep copy; the partition backing array is never shared.
func (a *MediaAsset) Clone() *MediaAsset {
	if a == nil {
		return nil
	}
	c := *a
	c.Partition = a.Partition.Clone()
	return &c
}

// ShareOf returns the stake held by owner, or 0 when it holds none.
func (a *MediaAsset) ShareOf(owner id.OwnerID) int {
	if i := a.Partition.IndexOf(owner); i >= 0 {
		return a.Partition[i].Share
	}
	return 0
}

// Owners lists stakeholders in partition order.
func (a *MediaAsset) Owners() []id.OwnerID {
	owners := make([]id.OwnerID, len(a.Partition))
	for i, s := range a.Partition {
		owners[i] = s.Owner
	}
	return owners
}
