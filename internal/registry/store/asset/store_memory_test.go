package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
	"mediashare/pkg/platform/sentinel"
)

type AssetStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestAssetStoreSuite(t *testing.T) {
	suite.Run(t, new(AssetStoreSuite))
}

func (s *AssetStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *AssetStoreSuite) create(assetID id.AssetID, creator id.OwnerID) *models.MediaAsset {
	a, err := models.NewMediaAsset(assetID, "Title "+assetID.String(), creator, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, a, nil))
	return a
}

func (s *AssetStoreSuite) transfer(assetID id.AssetID, from, to id.OwnerID, pct int) (*models.MediaAsset, error) {
	t := models.Transfer{AssetID: assetID, From: from, To: to, Percentage: pct}
	return s.store.Execute(s.ctx, assetID,
		func(a *models.MediaAsset) error { return a.CanTransfer(t) },
		func(a *models.MediaAsset) error {
			a.ApplyTransfer(t, s.now)
			return nil
		},
	)
}

func (s *AssetStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds asset", func() {
		s.create("m1", "alice")
		found, err := s.store.FindByID(s.ctx, "m1")
		s.Require().NoError(err)
		s.Equal(models.Partition{{Owner: "alice", Share: 100}}, found.Partition)
	})

	s.Run("rejects duplicate id", func() {
		dup, err := models.NewMediaAsset("m1", "Other", "bob", s.now)
		s.Require().NoError(err)
		recorded := false
		err = s.store.CreateIfAbsent(s.ctx, dup, func() error {
			recorded = true
			return nil
		})
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
		s.False(recorded, "nothing is recorded for a rejected create")

		found, err := s.store.FindByID(s.ctx, "m1")
		s.Require().NoError(err)
		s.Equal(id.OwnerID("alice"), found.Creator)
	})

	s.Run("record error leaves the id free", func() {
		a, err := models.NewMediaAsset("m2", "Title m2", "bob", s.now)
		s.Require().NoError(err)
		boom := errors.New("audit append failed")
		s.Require().ErrorIs(s.store.CreateIfAbsent(s.ctx, a, func() error { return boom }), boom)

		_, err = s.store.FindByID(s.ctx, "m2")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		page, err := s.store.List(s.ctx, "", 10)
		s.Require().NoError(err)
		s.Len(page, 1)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned copies do not alias the store", func() {
		found, err := s.store.FindByID(s.ctx, "m1")
		s.Require().NoError(err)
		found.Partition[0].Share = 1

		again, err := s.store.FindByID(s.ctx, "m1")
		s.Require().NoError(err)
		s.Equal(100, again.Partition[0].Share)
	})
}

func (s *AssetStoreSuite) TestExecute() {
	s.create("m1", "alice")

	s.Run("applies a valid transfer", func() {
		updated, err := s.transfer("m1", "alice", "bob", 40)
		s.Require().NoError(err)
		s.Equal(models.Partition{{Owner: "alice", Share: 60}, {Owner: "bob", Share: 40}}, updated.Partition)
		s.Equal(int64(2), updated.Version)
	})

	s.Run("failed validation writes nothing", func() {
		_, err := s.transfer("m1", "bob", "carol", 41)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInsufficientOwnership))

		found, err := s.store.FindByID(s.ctx, "m1")
		s.Require().NoError(err)
		s.Equal(models.Partition{{Owner: "alice", Share: 60}, {Owner: "bob", Share: 40}}, found.Partition)
		s.Equal(int64(2), found.Version)
	})

	s.Run("mutation that breaks the partition is refused", func() {
		_, err := s.store.Execute(s.ctx, "m1",
			func(*models.MediaAsset) error { return nil },
			func(a *models.MediaAsset) error {
				a.Partition[0].Share = 0
				return nil
			},
		)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		found, err := s.store.FindByID(s.ctx, "m1")
		s.Require().NoError(err)
		s.Equal(60, found.ShareOf("alice"))
	})

	s.Run("mutate error discards the applied change", func() {
		boom := errors.New("audit append failed")
		t := models.Transfer{AssetID: "m1", From: "alice", To: "carol", Percentage: 10}
		_, err := s.store.Execute(s.ctx, "m1",
			func(a *models.MediaAsset) error { return a.CanTransfer(t) },
			func(a *models.MediaAsset) error {
				a.ApplyTransfer(t, s.now)
				return boom
			},
		)
		s.Require().ErrorIs(err, boom)

		found, err := s.store.FindByID(s.ctx, "m1")
		s.Require().NoError(err)
		s.Equal(models.Partition{{Owner: "alice", Share: 60}, {Owner: "bob", Share: 40}}, found.Partition)
		s.Equal(int64(2), found.Version)
	})

	s.Run("unknown asset", func() {
		_, err := s.transfer("nope", "alice", "bob", 1)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("cancelled context", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		_, err := s.store.Execute(ctx, "m1",
			func(*models.MediaAsset) error { return nil },
			func(*models.MediaAsset) error { return nil },
		)
		s.Require().ErrorIs(err, context.Canceled)
	})
}

// TestConcurrentTransfersConserveOwnership races many senders against one
// asset; the partition must stay valid and no percentage may be lost.
func (s *AssetStoreSuite) TestConcurrentTransfersConserveOwnership() {
	s.create("m1", "alice")
	const workers = 50

	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := id.OwnerID(fmt.Sprintf("owner-%d", i%5))
			_, err := s.transfer("m1", "alice", to, 3)
			switch {
			case err == nil:
				ok.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInsufficientOwnership), dErrors.HasCode(err, dErrors.CodeFromNotFound):
				rejected.Add(1)
			default:
				s.Fail("unexpected error", err)
			}
		}(i)
	}
	wg.Wait()

	found, err := s.store.FindByID(s.ctx, "m1")
	s.Require().NoError(err)
	s.Require().NoError(found.Partition.Validate())
	s.Equal(100-3*int(ok.Load()), found.ShareOf("alice"))
	s.Equal(int32(workers), ok.Load()+rejected.Load())
	s.Equal(int64(1)+int64(ok.Load()), found.Version)
}

func (s *AssetStoreSuite) TestListing() {
	for _, assetID := range []id.AssetID{"m3", "m1", "m5", "m2", "m4"} {
		s.create(assetID, "alice")
	}
	_, err := s.transfer("m2", "alice", "bob", 25)
	s.Require().NoError(err)
	_, err = s.transfer("m4", "alice", "bob", 100)
	s.Require().NoError(err)

	s.Run("pages in asset id order", func() {
		page, err := s.store.List(s.ctx, "", 2)
		s.Require().NoError(err)
		s.Require().Len(page, 2)
		s.Equal(id.AssetID("m1"), page[0].AssetID)
		s.Equal(id.AssetID("m2"), page[1].AssetID)

		page, err = s.store.List(s.ctx, "m2", 10)
		s.Require().NoError(err)
		s.Require().Len(page, 3)
		s.Equal(id.AssetID("m3"), page[0].AssetID)

		page, err = s.store.List(s.ctx, "m5", 10)
		s.Require().NoError(err)
		s.Empty(page)
	})

	s.Run("holdings by owner", func() {
		holdings, err := s.store.ListByOwner(s.ctx, "bob")
		s.Require().NoError(err)
		s.Equal([]models.Holding{
			{AssetID: "m2", Title: "Title m2", Share: 25},
			{AssetID: "m4", Title: "Title m4", Share: 100},
		}, holdings)

		holdings, err = s.store.ListByOwner(s.ctx, "alice")
		s.Require().NoError(err)
		s.Len(holdings, 4, "alice exited m4")

		holdings, err = s.store.ListByOwner(s.ctx, "nobody")
		s.Require().NoError(err)
		s.Empty(holdings)
	})
}

func (s *AssetStoreSuite) TestCreateRejectsInvalidPartition() {
	bad := &models.MediaAsset{AssetID: "bad", Title: "x", Creator: "alice", Partition: models.Partition{{Owner: "alice", Share: 50}}}
	err := s.store.CreateIfAbsent(s.ctx, bad, nil)
	s.Require().Error(err)
	s.False(errors.Is(err, sentinel.ErrAlreadyUsed))
	_, err = s.store.FindByID(s.ctx, "bad")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
