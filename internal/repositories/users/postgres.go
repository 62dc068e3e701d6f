// Package users provides the PostgreSQL-backed user store.
package users

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context) (models.UserID, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `INSERT INTO app_user DEFAULT VALUES RETURNING id;`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return models.UserID(id), nil
}

func (r *PostgresRepository) Exists(ctx context.Context, userID models.UserID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM app_user WHERE id = $1);`, int64(userID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
