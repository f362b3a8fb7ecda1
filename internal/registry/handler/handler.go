package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mediashare/internal/registry/models"
	"mediashare/internal/registry/service"
	dErrors "mediashare/pkg/domain-errors"
	"mediashare/pkg/platform/httputil"
	authmw "mediashare/pkg/platform/middleware/auth"
	"mediashare/pkg/platform/middleware/request"
	"mediashare/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer needs.
type Service interface {
	CreateAsset(ctx context.Context, req service.CreateAssetRequest) (*models.MediaAsset, error)
	TransferShare(ctx context.Context, req service.TransferShareRequest) (*models.MediaAsset, error)
	GetAsset(ctx context.Context, assetID string) (*models.MediaAsset, error)
	ListAssets(ctx context.Context, req service.ListAssetsRequest) (*models.AssetPage, error)
	ListHoldings(ctx context.Context, ownerID string) ([]models.Holding, error)
}

// Handler serves the registry API.
type Handler struct {
	logger       *slog.Logger
	registry     Service
	jwtValidator authmw.JWTValidator
}

// New creates a registry Handler.
func New(registry Service, jwtValidator authmw.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		registry:     registry,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the registry routes. Reads are public; writes act as the
// bearer token's owner.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/assets", h.handleListAssets)
		r.Get("/assets/{assetID}", h.handleGetAsset)
		r.Get("/owners/{ownerID}/holdings", h.handleListHoldings)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
			r.Get("/me", h.handleWhoAmI)
			r.Post("/assets", h.handleCreateAsset)
			r.Post("/assets/{assetID}/transfers", h.handleTransfer)
		})
	})
}

func (h *Handler) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateAssetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	creator := req.Creator
	if creator == "" {
		creator = caller
	}
	if creator != caller {
		h.logger.WarnContext(ctx, "create asset rejected - creator is not the caller",
			"request_id", requestID,
			"caller", caller,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "creator must be the authenticated caller"))
		return
	}

	asset, err := h.registry.CreateAsset(ctx, service.CreateAssetRequest{
		AssetID: req.AssetID,
		Title:   req.Title,
		Creator: creator,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/assets/"+url.PathEscape(asset.AssetID.String()))
	httputil.WriteJSON(w, http.StatusCreated, toAssetResponse(asset))
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	asset, err := h.registry.TransferShare(ctx, service.TransferShareRequest{
		EntityID:   chi.URLParam(r, "assetID"),
		AssetID:    req.AssetID,
		From:       caller,
		To:         req.To,
		Percentage: *req.Percentage,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAssetResponse(asset))
}

func (h *Handler) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.registry.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAssetResponse(asset))
}

func (h *Handler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var limit int
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer"))
			return
		}
		limit = n
	}

	page, err := h.registry.ListAssets(r.Context(), service.ListAssetsRequest{
		Cursor: q.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAssetPageResponse(page))
}

func (h *Handler) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "ownerID")
	holdings, err := h.registry.ListHoldings(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHoldingsResponse(owner, holdings))
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r.Context())
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WhoAmIResponse{OwnerID: caller})
}

// requireCaller returns the authenticated owner. RequireAuth guarantees one,
// so a miss is a wiring fault.
func (h *Handler) requireCaller(w http.ResponseWriter, ctx context.Context) (string, bool) {
	caller := requestcontext.OwnerID(ctx)
	if caller.IsNil() {
		h.logger.ErrorContext(ctx, "owner missing from context despite auth middleware",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return caller.String(), true
}
