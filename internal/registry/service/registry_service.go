package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
	"mediashare/pkg/platform/audit"
	"mediashare/pkg/platform/sentinel"
	"mediashare/pkg/requestcontext"
)

// CreateAsset registers a new asset wholly owned by its creator.
func (s *Service) CreateAsset(ctx context.Context, req CreateAssetRequest) (_ *models.MediaAsset, err error) {
	ctx, span := s.tracer.Start(ctx, "registry.CreateAsset")
	defer func() { endSpan(span, err) }()

	assetID, err := id.ParseAssetID(req.AssetID)
	if err != nil {
		return nil, err
	}
	title, err := id.ParseTitle(req.Title)
	if err != nil {
		return nil, err
	}
	creator, err := id.ParseOwnerID(req.Creator)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("asset.id", assetID.String()))

	asset, err := models.NewMediaAsset(assetID, title, creator, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		err := s.store.CreateIfAbsent(txCtx, asset, func() error {
			return s.auditor.emit(txCtx, audit.EventAssetCreated, audit.Event{
				Subject:   assetID.String(),
				ActorID:   creator.String(),
				Share:     models.FullOwnership,
				Remaining: models.FullOwnership,
				Version:   asset.Version,
			})
		})
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeConflict, "asset id is already registered")
		}
		return wrapRegistryErr(err, "failed to create asset")
	})
	if err != nil {
		err = wrapRegistryErr(err, "failed to create asset")
		s.logFailure(ctx, "create asset failed", err, "asset_id", assetID)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementAssetsCreated()
	}
	s.logger.InfoContext(ctx, "asset created",
		"request_id", requestcontext.RequestID(ctx),
		"asset_id", assetID,
		"creator", creator,
	)
	return asset, nil
}

// TransferShare moves req.Percentage points of ownership from req.From to
// req.To. On any error the stored asset is unchanged.
func (s *Service) TransferShare(ctx context.Context, req TransferShareRequest) (_ *models.MediaAsset, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry.TransferShare")
	defer func() {
		s.observeTransfer(err, start)
		endSpan(span, err)
	}()

	entityID, err := id.ParseAssetID(req.EntityID)
	if err != nil {
		return nil, err
	}
	claimed := entityID
	if req.AssetID != "" {
		if claimed, err = id.ParseAssetID(req.AssetID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidAssetID, "asset id is malformed")
		}
	}
	from, err := id.ParseOwnerID(req.From)
	if err != nil {
		return nil, err
	}
	to, err := id.ParseOwnerID(req.To)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("asset.id", entityID.String()),
		attribute.Int("transfer.percentage", req.Percentage),
	)

	t := models.Transfer{AssetID: claimed, From: from, To: to, Percentage: req.Percentage}
	now := requestcontext.Now(ctx)

	var (
		updated *models.MediaAsset
		outcome models.TransferOutcome
	)
	// The audit records are written before the store commits, so a failed
	// audit leaves the asset untouched.
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var execErr error
		updated, execErr = s.store.Execute(txCtx, entityID,
			func(a *models.MediaAsset) error {
				return a.CanTransfer(t)
			},
			func(a *models.MediaAsset) error {
				outcome = a.ApplyTransfer(t, now)
				if err := a.Partition.Validate(); err != nil {
					return err
				}
				return s.auditTransfer(txCtx, a, t, outcome)
			},
		)
		return wrapRegistryErr(execErr, "failed to transfer share")
	})
	if err != nil {
		err = wrapRegistryErr(err, "failed to transfer share")
		s.logFailure(ctx, "transfer rejected", err,
			"asset_id", entityID,
			"from", from,
			"to", to,
			"percentage", t.Percentage,
		)
		return nil, err
	}

	s.refresh(ctx, updated)
	s.logger.InfoContext(ctx, "share transferred",
		"request_id", requestcontext.RequestID(ctx),
		"asset_id", entityID,
		"from", from,
		"to", to,
		"percentage", t.Percentage,
		"from_exited", outcome.FromExited,
		"version", updated.Version,
	)
	return updated, nil
}

func (s *Service) auditTransfer(ctx context.Context, a *models.MediaAsset, t models.Transfer, outcome models.TransferOutcome) error {
	if err := s.auditor.emit(ctx, audit.EventShareTransferred, audit.Event{
		Subject:      a.AssetID.String(),
		ActorID:      t.From.String(),
		Counterparty: t.To.String(),
		Share:        t.Percentage,
		Remaining:    outcome.FromShare,
		Version:      a.Version,
	}); err != nil {
		return err
	}
	if !outcome.FromExited {
		return nil
	}
	return s.auditor.emit(ctx, audit.EventStakeExited, audit.Event{
		Subject:      a.AssetID.String(),
		ActorID:      t.From.String(),
		Counterparty: t.To.String(),
		Version:      a.Version,
	})
}

// GetAsset reads through the cache.
func (s *Service) GetAsset(ctx context.Context, rawID string) (_ *models.MediaAsset, err error) {
	ctx, span := s.tracer.Start(ctx, "registry.GetAsset")
	defer func() { endSpan(span, err) }()

	assetID, err := id.ParseAssetID(rawID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("asset.id", assetID.String()))

	if asset, ok := s.cachedAsset(ctx, assetID); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return asset, nil
	}

	asset, err := s.store.FindByID(ctx, assetID)
	if err != nil {
		return nil, wrapRegistryErr(err, "failed to load asset")
	}
	if s.cache != nil {
		if cerr := s.cache.Set(ctx, asset); cerr != nil {
			s.cacheFailed(ctx, "cache set failed", assetID, cerr)
		}
	}
	s.auditor.record(ctx, audit.EventAssetRead, audit.Event{
		Subject: assetID.String(),
		ActorID: requestcontext.OwnerID(ctx).String(),
		Version: asset.Version,
	})
	return asset, nil
}

// ListAssets returns one page of assets ordered by asset id.
func (s *Service) ListAssets(ctx context.Context, req ListAssetsRequest) (_ *models.AssetPage, err error) {
	ctx, span := s.tracer.Start(ctx, "registry.ListAssets")
	defer func() { endSpan(span, err) }()

	limit := req.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100")
	}
	var after id.AssetID
	if req.Cursor != "" {
		cursor, err := id.ParseAssetID(req.Cursor)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "cursor is malformed")
		}
		after = cursor
	}

	// One extra row tells us whether another page exists.
	assets, err := s.store.List(ctx, after, limit+1)
	if err != nil {
		return nil, wrapRegistryErr(err, "failed to list assets")
	}
	page := &models.AssetPage{Assets: assets}
	if len(assets) > limit {
		page.Assets = assets[:limit]
		page.NextCursor = assets[limit-1].AssetID
	}
	span.SetAttributes(attribute.Int("page.size", len(page.Assets)))
	if page.Assets == nil {
		page.Assets = []*models.MediaAsset{}
	}
	return page, nil
}

// ListHoldings returns every asset where owner holds a stake.
func (s *Service) ListHoldings(ctx context.Context, rawOwner string) (_ []models.Holding, err error) {
	ctx, span := s.tracer.Start(ctx, "registry.ListHoldings")
	defer func() { endSpan(span, err) }()

	owner, err := id.ParseOwnerID(rawOwner)
	if err != nil {
		return nil, err
	}
	holdings, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, wrapRegistryErr(err, "failed to list holdings")
	}
	span.SetAttributes(attribute.String("owner.id", owner.String()), attribute.Int("holdings.count", len(holdings)))
	if holdings == nil {
		holdings = []models.Holding{}
	}
	return holdings, nil
}

func (s *Service) cachedAsset(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, bool) {
	if s.cache == nil {
		return nil, false
	}
	asset, err := s.cache.Get(ctx, assetID)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.IncrementCacheHit()
		}
		return asset, true
	case errors.Is(err, sentinel.ErrCacheMiss):
		if s.metrics != nil {
			s.metrics.IncrementCacheMiss()
		}
	default:
		s.cacheFailed(ctx, "cache get failed", assetID, err)
	}
	return nil, false
}

// refresh caches a just-committed asset. A read that loaded an older version
// before the commit cannot overwrite it afterwards; if the write fails the
// entry is dropped instead.
func (s *Service) refresh(ctx context.Context, asset *models.MediaAsset) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, asset); err != nil {
		s.cacheFailed(ctx, "cache refresh failed", asset.AssetID, err)
		s.invalidate(ctx, asset.AssetID)
	}
}

func (s *Service) invalidate(ctx context.Context, assetID id.AssetID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, assetID); err != nil {
		s.cacheFailed(ctx, "cache invalidate failed", assetID, err)
	}
}

func (s *Service) cacheFailed(ctx context.Context, msg string, assetID id.AssetID, err error) {
	if s.metrics != nil {
		s.metrics.IncrementCacheError()
	}
	s.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"asset_id", assetID,
		"error", err,
	)
}

func (s *Service) observeTransfer(err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.ObserveTransfer(outcome, start)
}

// logFailure logs caller-correctable errors at warn and faults at error.
func (s *Service) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args,
		"request_id", requestcontext.RequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	)
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= 500 {
		s.logger.ErrorContext(ctx, msg, args...)
		return
	}
	s.logger.WarnContext(ctx, msg, args...)
}

// wrapRegistryErr converts store sentinels into coded errors. Coded errors
// pass through so rejections keep their kind.
func wrapRegistryErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "asset not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "asset id is already registered")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, action)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, action)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.code", string(dErrors.CodeOf(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
