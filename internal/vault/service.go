package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/cryptox"
	"github.com/msavelyev/calhub/internal/logging"
	"github.com/msavelyev/calhub/internal/models"
	"github.com/msavelyev/calhub/internal/repositories/sources"
	"github.com/msavelyev/calhub/internal/repositories/vaultdata"
)

// Service is the vault use-case layer. It seals and opens the per-user master
// key, keeps unlock sessions in the Manager, and encrypts/decrypts provider
// credentials.
type Service struct {
	log      logging.Logger
	data     vaultdata.Repository
	sources  sources.Repository
	sessions *Manager
}

func NewService(log logging.Logger, data vaultdata.Repository, src sources.Repository, sessions *Manager) *Service {
	return &Service{log: log, data: data, sources: src, sessions: sessions}
}

// Sessions exposes the session manager, for callers that only need to inspect
// unlock state.
func (s *Service) Sessions() *Manager {
	return s.sessions
}

// UnlockOrCreate opens the user's vault with the given password. If no sealed
// key exists yet, a fresh master key is generated and sealed under the
// password. On every successful unlock the key is resealed with a fresh salt
// and nonce before being installed in the session, so the stored blob rotates
// on each use.
//
// A wrong password is reported as common.ErrWrongPassword and counted against
// the session.
func (s *Service) UnlockOrCreate(ctx context.Context, userID models.UserID, password []byte) error {
	entry, err := s.data.GetEntry(ctx, userID)
	switch {
	case err == nil:
		return s.unlock(ctx, userID, entry, password)
	case errors.Is(err, common.ErrNotFound):
		return s.create(ctx, userID, password)
	default:
		return fmt.Errorf("loading vault entry: %w", err)
	}
}

func (s *Service) create(ctx context.Context, userID models.UserID, password []byte) error {
	masterKey := cryptox.NewMasterKey()

	blob, err := cryptox.SealKey(masterKey, password)
	if err != nil {
		common.WipeByteArray(masterKey)
		return fmt.Errorf("sealing master key: %w", err)
	}
	if err := s.data.UpsertEntry(ctx, &models.VaultEntry{UserID: userID, EncryptedKeyBlob: blob}); err != nil {
		common.WipeByteArray(masterKey)
		return fmt.Errorf("storing vault entry: %w", err)
	}

	s.sessions.setUnlocked(userID, masterKey)
	s.log.Info(ctx, "vault created", "user_id", userID)
	return nil
}

func (s *Service) unlock(ctx context.Context, userID models.UserID, entry *models.VaultEntry, password []byte) error {
	masterKey, err := cryptox.OpenKey(entry.EncryptedKeyBlob, password)
	if err != nil {
		if errors.Is(err, common.ErrWrongPassword) {
			n := s.sessions.recordFailure(userID)
			s.log.Warn(ctx, "vault unlock failed", "user_id", userID, "failed_attempts", n)
		}
		return err
	}

	// Rotate the stored seal. A reseal failure is not fatal for the unlock:
	// the old blob still opens with the same password.
	blob, err := cryptox.SealKey(masterKey, password)
	if err == nil {
		err = s.data.UpsertEntry(ctx, &models.VaultEntry{UserID: userID, EncryptedKeyBlob: blob})
	}
	if err != nil {
		s.log.Warn(ctx, "vault reseal failed", "user_id", userID, "error", err)
	}

	s.sessions.setUnlocked(userID, masterKey)
	s.log.Info(ctx, "vault unlocked", "user_id", userID)
	return nil
}

// Lock discards the user's resident master key.
func (s *Service) Lock(ctx context.Context, userID models.UserID) {
	s.sessions.Lock(userID)
	s.log.Info(ctx, "vault locked", "user_id", userID)
}

// SetItem encrypts the credentials under the user's master key and stores
// them for the provider, registering the provider as a sync source on first
// write. Requires an unlocked session.
func (s *Service) SetItem(ctx context.Context, userID models.UserID, providerKey string, creds any) error {
	masterKey, err := s.sessions.Key(userID)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(masterKey)

	ciphertext, nonce, err := cryptox.EncryptItem(creds, masterKey)
	if err != nil {
		return fmt.Errorf("encrypting vault item: %w", err)
	}

	item := &models.VaultItem{
		UserID:      userID,
		ProviderKey: providerKey,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	}
	if err := s.data.UpsertItem(ctx, item); err != nil {
		return fmt.Errorf("storing vault item: %w", err)
	}
	if err := s.sources.EnsureExists(ctx, userID, providerKey); err != nil {
		return fmt.Errorf("registering sync source: %w", err)
	}

	s.log.Info(ctx, "vault item stored", "user_id", userID, "provider", providerKey)
	return nil
}

// GetItem decrypts the provider's credentials into v. Requires an unlocked
// session; a missing item is reported as common.ErrNoVaultItem.
func (s *Service) GetItem(ctx context.Context, userID models.UserID, providerKey string, v any) error {
	masterKey, err := s.sessions.Key(userID)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(masterKey)

	item, err := s.data.GetItem(ctx, userID, providerKey)
	if err != nil {
		return err
	}
	return cryptox.DecryptItem(item.Ciphertext, item.Nonce, masterKey, v)
}
