//go:build integration

package asset_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mediashare/internal/platform/postgres"
	"mediashare/internal/registry/models"
	"mediashare/internal/registry/store/asset"
	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
	"mediashare/pkg/platform/sentinel"
	txcontext "mediashare/pkg/platform/tx"
	"mediashare/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *asset.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(s.postgres.DB))
	s.store = asset.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "asset_stakes", "media_assets"))
}

func (s *PostgresStoreSuite) create(assetID id.AssetID, creator id.OwnerID) {
	a, err := models.NewMediaAsset(assetID, "Title "+assetID.String(), creator, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateIfAbsent(context.Background(), a, nil))
}

func (s *PostgresStoreSuite) transfer(ctx context.Context, assetID id.AssetID, from, to id.OwnerID, pct int) (*models.MediaAsset, error) {
	t := models.Transfer{AssetID: assetID, From: from, To: to, Percentage: pct}
	return s.store.Execute(ctx, assetID,
		func(a *models.MediaAsset) error { return a.CanTransfer(t) },
		func(a *models.MediaAsset) error {
			a.ApplyTransfer(t, s.now)
			return nil
		},
	)
}

func (s *PostgresStoreSuite) TestRoundTripPreservesPartitionOrder() {
	ctx := context.Background()
	s.create("m1", "alice")
	_, err := s.transfer(ctx, "m1", "alice", "carol", 30)
	s.Require().NoError(err)
	_, err = s.transfer(ctx, "m1", "alice", "bob", 20)
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, "m1")
	s.Require().NoError(err)
	s.Equal(models.Partition{
		{Owner: "alice", Share: 50},
		{Owner: "carol", Share: 30},
		{Owner: "bob", Share: 20},
	}, found.Partition)
	s.Equal(int64(3), found.Version)
}

func (s *PostgresStoreSuite) TestDuplicateCreate() {
	s.create("m1", "alice")
	dup, err := models.NewMediaAsset("m1", "Other", "bob", s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateIfAbsent(context.Background(), dup, nil), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestRejectionLeavesRowsUntouched() {
	ctx := context.Background()
	s.create("m1", "alice")
	_, err := s.transfer(ctx, "m1", "bob", "carol", 10)
	s.True(dErrors.HasCode(err, dErrors.CodeFromNotFound))

	_, err = s.transfer(ctx, "other", "alice", "bob", 10)
	s.ErrorIs(err, sentinel.ErrNotFound)

	found, err := s.store.FindByID(ctx, "m1")
	s.Require().NoError(err)
	s.Equal(int64(1), found.Version)
}

func (s *PostgresStoreSuite) TestAmbientTransactionRollback() {
	ctx := context.Background()
	s.create("m1", "alice")

	runner := txcontext.NewPostgresRunner(s.postgres.DB)
	boom := errors.New("audit failed")
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.transfer(ctx, "m1", "alice", "bob", 50); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	found, err := s.store.FindByID(ctx, "m1")
	s.Require().NoError(err)
	s.Equal(100, found.ShareOf("alice"))
}

func (s *PostgresStoreSuite) TestCallbackFailureRollsBack() {
	ctx := context.Background()
	boom := errors.New("audit failed")

	a, err := models.NewMediaAsset("m2", "Title m2", "bob", s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateIfAbsent(ctx, a, func() error { return boom }), boom)
	_, err = s.store.FindByID(ctx, "m2")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.create("m1", "alice")
	t := models.Transfer{AssetID: "m1", From: "alice", To: "bob", Percentage: 30}
	_, err = s.store.Execute(ctx, "m1",
		func(a *models.MediaAsset) error { return a.CanTransfer(t) },
		func(a *models.MediaAsset) error {
			a.ApplyTransfer(t, s.now)
			return boom
		},
	)
	s.ErrorIs(err, boom)

	found, err := s.store.FindByID(ctx, "m1")
	s.Require().NoError(err)
	s.Equal(models.Partition{{Owner: "alice", Share: 100}}, found.Partition)
	s.Equal(int64(1), found.Version)
}

// TestConcurrentTransfers verifies FOR UPDATE serializes senders so that the
// stored partition stays valid and sums are conserved.
func (s *PostgresStoreSuite) TestConcurrentTransfers() {
	ctx := context.Background()
	s.create("m1", "alice")
	const workers = 40

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.transfer(ctx, "m1", "alice", id.OwnerID(fmt.Sprintf("owner-%d", i%4)), 3); err == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, "m1")
	s.Require().NoError(err)
	s.Require().NoError(found.Partition.Validate())
	s.Equal(100-3*int(ok.Load()), found.ShareOf("alice"))
}

func (s *PostgresStoreSuite) TestListing() {
	ctx := context.Background()
	for _, assetID := range []id.AssetID{"m3", "m1", "m2"} {
		s.create(assetID, "alice")
	}
	_, err := s.transfer(ctx, "m2", "alice", "bob", 10)
	s.Require().NoError(err)

	page, err := s.store.List(ctx, "", 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(id.AssetID("m1"), page[0].AssetID)
	s.Equal(models.Partition{{Owner: "alice", Share: 90}, {Owner: "bob", Share: 10}}, page[1].Partition)

	page, err = s.store.List(ctx, "m2", 2)
	s.Require().NoError(err)
	s.Require().Len(page, 1)

	holdings, err := s.store.ListByOwner(ctx, "bob")
	s.Require().NoError(err)
	s.Equal([]models.Holding{{AssetID: "m2", Title: "Title m2", Share: 10}}, holdings)
}
