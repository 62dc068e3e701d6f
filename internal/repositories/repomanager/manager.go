package repomanager

import (
	"context"
	"database/sql"

	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/repositories/bindings"
	"github.com/msavelyev/calhub/internal/repositories/mappings"
	"github.com/msavelyev/calhub/internal/repositories/reservations"
	"github.com/msavelyev/calhub/internal/repositories/sources"
	"github.com/msavelyev/calhub/internal/repositories/users"
	"github.com/msavelyev/calhub/internal/repositories/vaultdata"
)

// RepositoryManager vends repository implementations bound to a DBTX, so a
// service can run several repositories inside one transaction by passing the
// same *sql.Tx to each accessor.
type RepositoryManager interface {
	Conn() *sql.DB
	RunMigrations(ctx context.Context) error
	Close() error

	Users(db dbx.DBTX) users.Repository
	Reservations(db dbx.DBTX) reservations.Repository
	Mappings(db dbx.DBTX) mappings.Repository
	VaultData(db dbx.DBTX) vaultdata.Repository
	Sources(db dbx.DBTX) sources.Repository
	Bindings(db dbx.DBTX) bindings.Repository
}
