package service

// CreateAssetRequest carries raw input for CreateAsset. Fields are parsed and
// bounded by the service.
type CreateAssetRequest struct {
	AssetID string
	Title   string
	Creator string
}

// TransferShareRequest carries raw input for TransferShare.
//
// EntityID addresses the stored asset. AssetID is the id the caller claims to
// be acting on; it defaults to EntityID and a mismatch is rejected with
// invalid_asset_id. From must already be authenticated.
type TransferShareRequest struct {
	EntityID   string
	AssetID    string
	From       string
	To         string
	Percentage int
}

type ListAssetsRequest struct {
	Cursor string
	Limit  int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)
