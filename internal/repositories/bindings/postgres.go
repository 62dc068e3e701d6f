// Package bindings provides the PostgreSQL-backed remote_calendar_binding store.
package bindings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msavelyev/calhub/internal/common"
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

const selectColumns = `user_id, subject, calendar_id, acl_id, last_synced`

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID models.UserID) (*models.CalendarBinding, error) {
	query := `SELECT ` + selectColumns + ` FROM remote_calendar_binding WHERE user_id = $1;`
	return r.scanOne(r.db.QueryRowContext(ctx, query, int64(userID)))
}

func (r *PostgresRepository) GetBySubject(ctx context.Context, subject string) (*models.CalendarBinding, error) {
	query := `SELECT ` + selectColumns + ` FROM remote_calendar_binding WHERE subject = $1;`
	return r.scanOne(r.db.QueryRowContext(ctx, query, subject))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.CalendarBinding, error) {
	var (
		b  models.CalendarBinding
		id int64
	)
	err := row.Scan(&id, &b.Subject, &b.CalendarID, &b.ACLID, &b.LastSynced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	b.UserID = models.UserID(id)
	return &b, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, b *models.CalendarBinding) error {
	query := `
		INSERT INTO remote_calendar_binding (user_id, subject, calendar_id, acl_id, last_synced)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET
			calendar_id = EXCLUDED.calendar_id,
			acl_id = EXCLUDED.acl_id;
	`
	if _, err := r.db.ExecContext(ctx, query,
		int64(b.UserID), b.Subject, b.CalendarID, b.ACLID, b.LastSynced,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateLastSynced(ctx context.Context, userID models.UserID, t time.Time) error {
	query := `UPDATE remote_calendar_binding SET last_synced = $1 WHERE user_id = $2;`
	if _, err := r.db.ExecContext(ctx, query, t, int64(userID)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
