package asset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	"mediashare/pkg/platform/sentinel"
	txcontext "mediashare/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists assets in media_assets and their partitions in
// asset_stakes, one row per stake ordered by position.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn on the ambient transaction when there is one, otherwise on a
// transaction of its own.
func (s *PostgresStore) inTx(ctx context.Context, fn func(q querier) error) (err error) {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) reader(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreateIfAbsent inserts the asset and its stakes, then runs record in the
// same transaction so a record failure rolls the insert back.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, asset *models.MediaAsset, record func() error) error {
	if err := asset.Partition.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO media_assets (asset_id, title, creator, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, asset.AssetID.String(), asset.Title, asset.Creator.String(), asset.Version, asset.CreatedAt, asset.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("asset %s: %w", asset.AssetID, sentinel.ErrAlreadyUsed)
			}
			return fmt.Errorf("insert asset: %w", err)
		}
		if err := writeStakes(ctx, q, asset); err != nil {
			return err
		}
		if record != nil {
			return record()
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, error) {
	return loadAsset(ctx, s.reader(ctx), assetID, false)
}

// Execute locks the asset row with FOR UPDATE, validates and mutates it, then
// rewrites its stakes. Nothing is committed if validate or mutate fails.
func (s *PostgresStore) Execute(ctx context.Context, assetID id.AssetID, validate func(*models.MediaAsset) error, mutate func(*models.MediaAsset) error) (*models.MediaAsset, error) {
	var result *models.MediaAsset
	err := s.inTx(ctx, func(q querier) error {
		asset, err := loadAsset(ctx, q, assetID, true)
		if err != nil {
			return err
		}
		if err := validate(asset); err != nil {
			return err
		}
		if err := mutate(asset); err != nil {
			return err
		}
		if err := asset.Partition.Validate(); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `
			UPDATE media_assets SET version = $2, updated_at = $3 WHERE asset_id = $1
		`, assetID.String(), asset.Version, asset.UpdatedAt); err != nil {
			return fmt.Errorf("update asset: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM asset_stakes WHERE asset_id = $1`, assetID.String()); err != nil {
			return fmt.Errorf("clear stakes: %w", err)
		}
		if err := writeStakes(ctx, q, asset); err != nil {
			return err
		}
		result = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) List(ctx context.Context, after id.AssetID, limit int) ([]*models.MediaAsset, error) {
	rows, err := s.reader(ctx).QueryContext(ctx, `
		SELECT a.asset_id, a.title, a.creator, a.version, a.created_at, a.updated_at, st.owner_id, st.share
		FROM (
			SELECT * FROM media_assets
			WHERE asset_id > $1
			ORDER BY asset_id
			LIMIT $2
		) a
		JOIN asset_stakes st ON st.asset_id = a.asset_id
		ORDER BY a.asset_id, st.position
	`, after.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.MediaAsset
	var current *models.MediaAsset
	for rows.Next() {
		var (
			a     models.MediaAsset
			stake models.Stake
		)
		if err := rows.Scan(&a.AssetID, &a.Title, &a.Creator, &a.Version, &a.CreatedAt, &a.UpdatedAt, &stake.Owner, &stake.Share); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		if current == nil || current.AssetID != a.AssetID {
			current = &a
			assets = append(assets, current)
		}
		current.Partition = append(current.Partition, stake)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	for _, a := range assets {
		if err := a.Partition.Validate(); err != nil {
			return nil, fmt.Errorf("asset %s: %w", a.AssetID, err)
		}
	}
	return assets, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.OwnerID) ([]models.Holding, error) {
	rows, err := s.reader(ctx).QueryContext(ctx, `
		SELECT a.asset_id, a.title, st.share
		FROM asset_stakes st
		JOIN media_assets a ON a.asset_id = st.asset_id
		WHERE st.owner_id = $1
		ORDER BY a.asset_id
	`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.AssetID, &h.Title, &h.Share); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings: %w", err)
	}
	return holdings, nil
}

func loadAsset(ctx context.Context, q querier, assetID id.AssetID, forUpdate bool) (*models.MediaAsset, error) {
	query := `
		SELECT asset_id, title, creator, version, created_at, updated_at
		FROM media_assets WHERE asset_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var a models.MediaAsset
	err := q.QueryRowContext(ctx, query, assetID.String()).
		Scan(&a.AssetID, &a.Title, &a.Creator, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", assetID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT owner_id, share FROM asset_stakes
		WHERE asset_id = $1
		ORDER BY position
	`, assetID.String())
	if err != nil {
		return nil, fmt.Errorf("load stakes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stake models.Stake
		if err := rows.Scan(&stake.Owner, &stake.Share); err != nil {
			return nil, fmt.Errorf("scan stake: %w", err)
		}
		a.Partition = append(a.Partition, stake)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stakes: %w", err)
	}
	if err := a.Partition.Validate(); err != nil {
		return nil, fmt.Errorf("asset %s: %w", assetID, err)
	}
	return &a, nil
}

func writeStakes(ctx context.Context, q querier, asset *models.MediaAsset) error {
	for pos, stake := range asset.Partition {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO asset_stakes (asset_id, position, owner_id, share)
			VALUES ($1, $2, $3, $4)
		`, asset.AssetID.String(), pos, stake.Owner.String(), stake.Share); err != nil {
			return fmt.Errorf("insert stake: %w", err)
		}
	}
	return nil
}
