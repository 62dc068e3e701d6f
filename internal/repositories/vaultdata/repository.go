package vaultdata

import (
	"context"

	"github.com/msavelyev/calhub/internal/models"
)

// Repository stores the sealed master key blob and the encrypted per-provider
// items. Plaintext never passes through this layer.
type Repository interface {
	// GetEntry returns the sealed key blob or common.ErrNotFound.
	GetEntry(ctx context.Context, userID models.UserID) (*models.VaultEntry, error)

	// UpsertEntry writes the sealed key blob, overwriting any previous seal.
	UpsertEntry(ctx context.Context, entry *models.VaultEntry) error

	// GetItem returns one provider's ciphertext or common.ErrNoVaultItem.
	GetItem(ctx context.Context, userID models.UserID, providerKey string) (*models.VaultItem, error)

	// UpsertItem writes a provider's (nonce, ciphertext) pair.
	UpsertItem(ctx context.Context, item *models.VaultItem) error
}
