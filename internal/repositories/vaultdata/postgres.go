// Package vaultdata provides the PostgreSQL-backed storage for sealed vault
// blobs and encrypted provider items.
package vaultdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) GetEntry(ctx context.Context, userID models.UserID) (*models.VaultEntry, error) {
	query := `SELECT encrypted_key_blob FROM vault_entry WHERE user_id = $1;`

	entry := models.VaultEntry{UserID: userID}
	err := r.db.QueryRowContext(ctx, query, int64(userID)).Scan(&entry.EncryptedKeyBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &entry, nil
}

func (r *PostgresRepository) UpsertEntry(ctx context.Context, entry *models.VaultEntry) error {
	query := `
		INSERT INTO vault_entry (user_id, encrypted_key_blob)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET encrypted_key_blob = EXCLUDED.encrypted_key_blob;
	`
	if _, err := r.db.ExecContext(ctx, query, int64(entry.UserID), entry.EncryptedKeyBlob); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetItem(ctx context.Context, userID models.UserID, providerKey string) (*models.VaultItem, error) {
	query := `SELECT nonce, ciphertext FROM vault_item WHERE user_id = $1 AND provider_key = $2;`

	item := models.VaultItem{UserID: userID, ProviderKey: providerKey}
	err := r.db.QueryRowContext(ctx, query, int64(userID), providerKey).Scan(&item.Nonce, &item.Ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNoVaultItem
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &item, nil
}

func (r *PostgresRepository) UpsertItem(ctx context.Context, item *models.VaultItem) error {
	query := `
		INSERT INTO vault_item (user_id, provider_key, nonce, ciphertext)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider_key)
		DO UPDATE SET
			nonce = EXCLUDED.nonce,
			ciphertext = EXCLUDED.ciphertext;
	`
	if _, err := r.db.ExecContext(ctx, query,
		int64(item.UserID), item.ProviderKey, item.Nonce, item.Ciphertext,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
