package vaultdata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestGetEntry_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT encrypted_key_blob FROM vault_entry WHERE user_id = \$1`).
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetEntry(context.Background(), 1)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertEntry_OverwritesBlob(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	blob := []byte(`{"salt":"..."}`)

	mock.ExpectExec(`INSERT INTO vault_entry .* ON CONFLICT \(user_id\)\s+DO UPDATE SET encrypted_key_blob = EXCLUDED\.encrypted_key_blob`).
		WithArgs(int64(1), blob).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertEntry(context.Background(), &models.VaultEntry{UserID: 1, EncryptedKeyBlob: blob})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetItem_MapsMissingRowToNoVaultItem(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT nonce, ciphertext FROM vault_item WHERE user_id = \$1 AND provider_key = \$2`).
		WithArgs(int64(1), "cgv").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetItem(context.Background(), 1, "cgv")
	if !errors.Is(err, common.ErrNoVaultItem) {
		t.Fatalf("expected ErrNoVaultItem, got %v", err)
	}
}

func TestUpsertItem(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vault_item .* ON CONFLICT \(user_id, provider_key\)`).
		WithArgs(int64(1), "cgv", []byte("nonce"), []byte("ct")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertItem(context.Background(), &models.VaultItem{
		UserID: 1, ProviderKey: "cgv", Nonce: []byte("nonce"), Ciphertext: []byte("ct"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
