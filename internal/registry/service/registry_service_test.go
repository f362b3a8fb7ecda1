package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mediashare/internal/registry/cache"
	"mediashare/internal/registry/metrics"
	"mediashare/internal/registry/models"
	assetstore "mediashare/internal/registry/store/asset"
	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
	"mediashare/pkg/platform/audit"
	"mediashare/pkg/platform/audit/publishers/compliance"
	auditmemory "mediashare/pkg/platform/audit/store/memory"
	"mediashare/pkg/platform/middleware/metadata"
	"mediashare/pkg/platform/sentinel"
	"mediashare/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Cache,AuditPublisher,StoreTx

type RegistryServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *assetstore.InMemory
	auditStore *auditmemory.InMemoryStore
	metrics    *metrics.Metrics
	service    *Service
	now        time.Time
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithRequestID(s.ctx, "req-1")
	s.ctx = metadata.WithClient(s.ctx, metadata.Client{IP: "203.0.113.7", UserAgent: "mediactl/1.0"})
	s.store = assetstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(compliance.New(s.auditStore)),
		WithCache(cache.NewLocal(time.Minute)),
	)
}

func (s *RegistryServiceSuite) create(assetID, creator string) *models.MediaAsset {
	asset, err := s.service.CreateAsset(s.ctx, CreateAssetRequest{AssetID: assetID, Title: "Sunset", Creator: creator})
	s.Require().NoError(err)
	return asset
}

func (s *RegistryServiceSuite) transfer(assetID, from, to string, pct int) (*models.MediaAsset, error) {
	return s.service.TransferShare(s.ctx, TransferShareRequest{EntityID: assetID, From: from, To: to, Percentage: pct})
}

func (s *RegistryServiceSuite) stored(assetID string) *models.MediaAsset {
	asset, err := s.store.FindByID(s.ctx, id.AssetID(assetID))
	s.Require().NoError(err)
	return asset
}

func (s *RegistryServiceSuite) TestCreateAsset() {
	s.Run("creator holds the whole asset", func() {
		asset := s.create("a1", "alice")
		s.Equal(models.Partition{{Owner: "alice", Share: 100}}, asset.Partition)
		s.Equal("Sunset", asset.Title)
		s.Equal(s.now, asset.CreatedAt)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.AssetsCreated))
	})

	s.Run("asset_created is audited", func() {
		events, err := s.auditStore.ListBySubject(s.ctx, "a1")
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventAssetCreated), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
		s.Equal("alice", events[0].ActorID)
		s.Equal("req-1", events[0].RequestID)
		s.Equal("203.0.113.7", events[0].ClientIP)
		s.Equal("mediactl/1.0", events[0].UserAgent)
	})

	s.Run("duplicate id is a conflict", func() {
		_, err := s.service.CreateAsset(s.ctx, CreateAssetRequest{AssetID: "a1", Title: "Other", Creator: "bob"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(id.OwnerID("alice"), s.stored("a1").Creator)
	})

	s.Run("bad input is rejected before the store", func() {
		cases := []CreateAssetRequest{
			{AssetID: "", Title: "t", Creator: "alice"},
			{AssetID: "a2", Title: "  ", Creator: "alice"},
			{AssetID: "a2", Title: "t", Creator: ""},
		}
		for _, req := range cases {
			_, err := s.service.CreateAsset(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "request %+v", req)
		}
		_, err := s.store.FindByID(s.ctx, "a2")
		s.Error(err)
	})
}

func (s *RegistryServiceSuite) TestTransferScenarios() {
	s.create("a1", "alice")

	s.Run("partial transfer appends the receiver", func() {
		asset, err := s.transfer("a1", "alice", "bob", 40)
		s.Require().NoError(err)
		s.Equal(models.Partition{{Owner: "alice", Share: 60}, {Owner: "bob", Share: 40}}, asset.Partition)
	})

	s.Run("transferring the rest removes the sender", func() {
		asset, err := s.transfer("a1", "alice", "bob", 60)
		s.Require().NoError(err)
		s.Equal(models.Partition{{Owner: "bob", Share: 100}}, asset.Partition)

		events, err := s.auditStore.ListBySubject(s.ctx, "a1")
		s.Require().NoError(err)
		actions := make([]string, 0, len(events))
		for _, e := range events {
			actions = append(actions, e.Action)
		}
		s.Equal([]string{"asset_created", "share_transferred", "share_transferred", "stake_exited"}, actions)
		s.Equal(0, events[2].Remaining)
	})

	s.Run("rejections leave the asset untouched", func() {
		before := s.stored("a1")
		cases := []struct {
			name string
			req  TransferShareRequest
			code dErrors.Code
		}{
			{"percentage too large", TransferShareRequest{EntityID: "a1", From: "bob", To: "carol", Percentage: 999}, dErrors.CodeInvalidPercentage},
			{"zero percentage", TransferShareRequest{EntityID: "a1", From: "bob", To: "carol", Percentage: 0}, dErrors.CodeInvalidPercentage},
			{"sender holds nothing", TransferShareRequest{EntityID: "a1", From: "alice", To: "carol", Percentage: 10}, dErrors.CodeFromNotFound},
			{"wrong asset id", TransferShareRequest{EntityID: "a1", AssetID: "a9", From: "bob", To: "carol", Percentage: 10}, dErrors.CodeInvalidAssetID},
			{"malformed claimed id", TransferShareRequest{EntityID: "a1", AssetID: "bad\x00id", From: "bob", To: "carol", Percentage: 10}, dErrors.CodeInvalidAssetID},
			{"unknown asset", TransferShareRequest{EntityID: "nope", From: "bob", To: "carol", Percentage: 10}, dErrors.CodeNotFound},
		}
		for _, tc := range cases {
			s.Run(tc.name, func() {
				_, err := s.service.TransferShare(s.ctx, tc.req)
				s.True(dErrors.HasCode(err, tc.code), "got %v", err)
			})
		}
		s.Equal(before, s.stored("a1"))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Transfers.WithLabelValues(string(dErrors.CodeFromNotFound))))
	})
}

func (s *RegistryServiceSuite) TestInsufficientOwnership() {
	s.create("a1", "alice")
	_, err := s.transfer("a1", "alice", "bob", 40)
	s.Require().NoError(err)

	_, err = s.transfer("a1", "alice", "bob", 90)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientOwnership))
	s.Equal(models.Partition{{Owner: "alice", Share: 60}, {Owner: "bob", Share: 40}}, s.stored("a1").Partition)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Transfers.WithLabelValues("ok")))
}

func (s *RegistryServiceSuite) TestSelfTransferKeepsPartition() {
	s.create("a1", "alice")
	asset, err := s.transfer("a1", "alice", "alice", 30)
	s.Require().NoError(err)
	s.Equal(models.Partition{{Owner: "alice", Share: 100}}, asset.Partition)
}

func (s *RegistryServiceSuite) TestGetAssetSeesTransfers() {
	s.create("a1", "alice")

	first, err := s.service.GetAsset(s.ctx, "a1")
	s.Require().NoError(err)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheMisses))

	_, err = s.service.GetAsset(s.ctx, "a1")
	s.Require().NoError(err)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheHits))

	_, err = s.transfer("a1", "alice", "bob", 25)
	s.Require().NoError(err)

	after, err := s.service.GetAsset(s.ctx, "a1")
	s.Require().NoError(err)
	s.Equal(first.Version+1, after.Version)
	s.Equal(75, after.ShareOf("alice"))

	_, err = s.service.GetAsset(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// racingStore runs race once, after FindByID has read its snapshot and
// before it returns, like a writer committing mid-read.
type racingStore struct {
	*assetstore.InMemory
	race func()
}

func (r *racingStore) FindByID(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, error) {
	snapshot, err := r.InMemory.FindByID(ctx, assetID)
	if race := r.race; race != nil {
		r.race = nil
		race()
	}
	return snapshot, err
}

func (s *RegistryServiceSuite) TestReadRacingTransferKeepsNewerCachedVersion() {
	store := &racingStore{InMemory: s.store}
	svc := New(store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCache(cache.NewLocal(time.Minute)),
	)
	_, err := svc.CreateAsset(s.ctx, CreateAssetRequest{AssetID: "a1", Title: "Sunset", Creator: "alice"})
	s.Require().NoError(err)

	store.race = func() {
		_, err := svc.TransferShare(s.ctx, TransferShareRequest{EntityID: "a1", From: "alice", To: "bob", Percentage: 40})
		s.Require().NoError(err)
	}
	read, err := svc.GetAsset(s.ctx, "a1")
	s.Require().NoError(err)
	s.Equal(int64(1), read.Version, "the racing read returns what it loaded")

	next, err := svc.GetAsset(s.ctx, "a1")
	s.Require().NoError(err)
	s.Equal(int64(2), next.Version)
	s.Equal(models.Partition{{Owner: "alice", Share: 60}, {Owner: "bob", Share: 40}}, next.Partition)
}

type failingPublisher struct{ err error }

func (p failingPublisher) Emit(context.Context, audit.Event) error { return p.err }

func (s *RegistryServiceSuite) TestAuditFailureLeavesStoreUnchanged() {
	s.create("a1", "alice")
	svc := New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(failingPublisher{err: errors.New("audit store unreachable")}),
		WithCache(cache.NewLocal(time.Minute)),
	)

	s.Run("transfer", func() {
		_, err := svc.TransferShare(s.ctx, TransferShareRequest{EntityID: "a1", From: "alice", To: "bob", Percentage: 40})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		stored := s.stored("a1")
		s.Equal(models.Partition{{Owner: "alice", Share: 100}}, stored.Partition)
		s.Equal(int64(1), stored.Version)

		read, err := svc.GetAsset(s.ctx, "a1")
		s.Require().NoError(err)
		s.Equal(models.Partition{{Owner: "alice", Share: 100}}, read.Partition)
	})

	s.Run("create", func() {
		_, err := svc.CreateAsset(s.ctx, CreateAssetRequest{AssetID: "a2", Title: "Dawn", Creator: "bob"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		_, err = s.store.FindByID(s.ctx, "a2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RegistryServiceSuite) TestListAssets() {
	for _, assetID := range []string{"c", "a", "b", "d", "e"} {
		s.create(assetID, "alice")
	}

	page, err := s.service.ListAssets(s.ctx, ListAssetsRequest{Limit: 2})
	s.Require().NoError(err)
	s.Equal([]id.AssetID{"a", "b"}, assetIDs(page.Assets))
	s.Equal(id.AssetID("b"), page.NextCursor)

	page, err = s.service.ListAssets(s.ctx, ListAssetsRequest{Limit: 2, Cursor: "d"})
	s.Require().NoError(err)
	s.Equal([]id.AssetID{"e"}, assetIDs(page.Assets))
	s.True(page.NextCursor.IsNil())

	page, err = s.service.ListAssets(s.ctx, ListAssetsRequest{})
	s.Require().NoError(err)
	s.Len(page.Assets, 5)

	for _, limit := range []int{-1, 101} {
		_, err = s.service.ListAssets(s.ctx, ListAssetsRequest{Limit: limit})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	}
}

func (s *RegistryServiceSuite) TestListHoldings() {
	s.create("a1", "alice")
	s.create("a2", "alice")
	_, err := s.transfer("a2", "alice", "bob", 30)
	s.Require().NoError(err)

	holdings, err := s.service.ListHoldings(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal([]models.Holding{{AssetID: "a2", Title: "Sunset", Share: 30}}, holdings)

	holdings, err = s.service.ListHoldings(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(holdings)
	s.NotNil(holdings)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func assetIDs(assets []*models.MediaAsset) []id.AssetID {
	out := make([]id.AssetID, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.AssetID)
	}
	return out
}

func TestWrapRegistryErr(t *testing.T) {
	coded := dErrors.New(dErrors.CodeInsufficientOwnership, "short")
	assert.Same(t, coded, wrapRegistryErr(coded, "x"))
	assert.Nil(t, wrapRegistryErr(nil, "x"))

	cases := map[error]dErrors.Code{
		errors.New("disk on fire"):    dErrors.CodeInternal,
		context.DeadlineExceeded:      dErrors.CodeTimeout,
		errors.Join(context.Canceled): dErrors.CodeTimeout,
	}
	for in, code := range cases {
		require.True(t, dErrors.HasCode(wrapRegistryErr(in, "x"), code), "%v", in)
	}
}
