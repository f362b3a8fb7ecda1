package handler

import (
	"time"

	"mediashare/internal/registry/models"
)

type StakeResponse struct {
	Owner string `json:"owner"`
	Share int    `json:"share"`
}

type AssetResponse struct {
	AssetID   string          `json:"asset_id"`
	Title     string          `json:"title"`
	Creator   string          `json:"creator"`
	Partition []StakeResponse `json:"partition"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type AssetPageResponse struct {
	Assets     []AssetResponse `json:"assets"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type HoldingResponse struct {
	AssetID string `json:"asset_id"`
	Title   string `json:"title"`
	Share   int    `json:"share"`
}

type HoldingsResponse struct {
	OwnerID  string            `json:"owner_id"`
	Holdings []HoldingResponse `json:"holdings"`
}

type WhoAmIResponse struct {
	OwnerID string `json:"owner_id"`
}

func toAssetResponse(a *models.MediaAsset) AssetResponse {
	stakes := make([]StakeResponse, 0, len(a.Partition))
	for _, s := range a.Partition {
		stakes = append(stakes, StakeResponse{Owner: s.Owner.String(), Share: s.Share})
	}
	return AssetResponse{
		AssetID:   a.AssetID.String(),
		Title:     a.Title,
		Creator:   a.Creator.String(),
		Partition: stakes,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAssetPageResponse(p *models.AssetPage) AssetPageResponse {
	assets := make([]AssetResponse, 0, len(p.Assets))
	for _, a := range p.Assets {
		assets = append(assets, toAssetResponse(a))
	}
	return AssetPageResponse{Assets: assets, NextCursor: p.NextCursor.String()}
}

func toHoldingsResponse(owner string, holdings []models.Holding) HoldingsResponse {
	out := make([]HoldingResponse, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, HoldingResponse{AssetID: h.AssetID.String(), Title: h.Title, Share: h.Share})
	}
	return HoldingsResponse{OwnerID: owner, Holdings: out}
}
