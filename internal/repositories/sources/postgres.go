// Package sources provides the PostgreSQL-backed sync_source store.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) EnsureExists(ctx context.Context, userID models.UserID, providerKey string) error {
	query := `
		INSERT INTO sync_source (user_id, provider_key, last_synced)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING;
	`
	if _, err := r.db.ExecContext(ctx, query, int64(userID), providerKey, time.Unix(0, 0).UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UsersForProvider(ctx context.Context, providerKey string) ([]models.UserID, error) {
	query := `SELECT user_id FROM sync_source WHERE provider_key = $1 ORDER BY user_id;`

	rows, err := r.db.QueryContext(ctx, query, providerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to select sources: %w", err)
	}
	defer rows.Close()

	var result []models.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, models.UserID(id))
	}
	return result, rows.Err()
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID models.UserID) ([]*models.SyncSource, error) {
	query := `SELECT user_id, provider_key, last_synced FROM sync_source WHERE user_id = $1 ORDER BY provider_key;`

	rows, err := r.db.QueryContext(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to select sources: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncSource
	for rows.Next() {
		var (
			item models.SyncSource
			id   int64
		)
		if err := rows.Scan(&id, &item.ProviderKey, &item.LastSynced); err != nil {
			return nil, err
		}
		item.UserID = models.UserID(id)
		result = append(result, &item)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) UpdateLastSynced(ctx context.Context, userID models.UserID, providerKey string, t time.Time) error {
	query := `UPDATE sync_source SET last_synced = $1 WHERE user_id = $2 AND provider_key = $3;`
	if _, err := r.db.ExecContext(ctx, query, t, int64(userID), providerKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
