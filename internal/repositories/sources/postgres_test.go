package sources

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestEnsureExists_InsertsZeroWatermark(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO sync_source .* ON CONFLICT DO NOTHING`).
		WithArgs(int64(9), "cgv", time.Unix(0, 0).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.EnsureExists(context.Background(), 9, "cgv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUsersForProvider(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT user_id FROM sync_source WHERE provider_key = \$1`).
		WithArgs("kobus").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(1)).AddRow(int64(4)))

	got, err := repo.UsersForProvider(context.Background(), "kobus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestUpdateLastSynced(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE sync_source SET last_synced = \$1 WHERE user_id = \$2 AND provider_key = \$3`).
		WithArgs(now, int64(9), "cgv").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLastSynced(context.Background(), 9, "cgv", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
