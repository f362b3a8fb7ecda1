package handler

import (
	"strings"

	dErrors "mediashare/pkg/domain-errors"
)

// CreateAssetRequest is the body of POST /v1/assets. Creator defaults to the
// authenticated caller.
type CreateAssetRequest struct {
	AssetID string `json:"asset_id"`
	Title   string `json:"title"`
	Creator string `json:"creator,omitempty"`
}

func (r *CreateAssetRequest) Validate() error {
	r.AssetID = strings.TrimSpace(r.AssetID)
	r.Title = strings.TrimSpace(r.Title)
	r.Creator = strings.TrimSpace(r.Creator)
	if r.AssetID == "" {
		return dErrors.New(dErrors.CodeValidation, "asset_id is required")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

// TransferRequest is the body of POST /v1/assets/{assetID}/transfers.
// AssetID, when present, must name the asset in the path. Percentage bounds
// are checked by the registry so the rejection carries its own code.
type TransferRequest struct {
	AssetID    string `json:"asset_id,omitempty"`
	To         string `json:"to"`
	Percentage *int   `json:"percentage"`
}

func (r *TransferRequest) Validate() error {
	r.To = strings.TrimSpace(r.To)
	if r.To == "" {
		return dErrors.New(dErrors.CodeValidation, "to is required")
	}
	if r.Percentage == nil {
		return dErrors.New(dErrors.CodeValidation, "percentage is required")
	}
	return nil
}
