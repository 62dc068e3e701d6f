// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/migrations"
	"github.com/msavelyev/calhub/internal/repositories/bindings"
	"github.com/msavelyev/calhub/internal/repositories/mappings"
	"github.com/msavelyev/calhub/internal/repositories/reservations"
	"github.com/msavelyev/calhub/internal/repositories/sources"
	"github.com/msavelyev/calhub/internal/repositories/users"
	"github.com/msavelyev/calhub/internal/repositories/vaultdata"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Reservations(db dbx.DBTX) reservations.Repository {
	return reservations.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Mappings(db dbx.DBTX) mappings.Repository {
	return mappings.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) VaultData(db dbx.DBTX) vaultdata.Repository {
	return vaultdata.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sources(db dbx.DBTX) sources.Repository {
	return sources.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Bindings(db dbx.DBTX) bindings.Repository {
	return bindings.NewPostgresRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the managed database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, ".")
}

// NewPostgresRepositoryManager opens the database, waits for it to become
// reachable (the container may still be starting), and runs migrations.
func NewPostgresRepositoryManager(ctx context.Context, dsn string) (RepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(db.PingContext(ctx))
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := &PostgresRepositoryManager{db: db}

	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
