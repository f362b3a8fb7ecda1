package models

import id "mediashare/pkg/domain"

// AssetCreated is recorded when an asset enters the registry.
type AssetCreated struct {
	AssetID id.AssetID
	Creator id.OwnerID
	Title   string
}

// ShareTransferred is recorded for every applied transfer.
type ShareTransferred struct {
	AssetID    id.AssetID
	From       id.OwnerID
	To         id.OwnerID
	Percentage int
	Outcome    TransferOutcome
	Version    int64
}

// Holding is one asset in an owner's portfolio.
type Holding struct {
	AssetID id.AssetID `json:"asset_id"`
	Title   string     `json:"title"`
	Share   int        `json:"share"`
}

// AssetPage is one page of a listing ordered by asset id.
type AssetPage struct {
	Assets     []*MediaAsset
	NextCursor id.AssetID
}
