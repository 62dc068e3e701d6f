package models

// VaultEntry is the password-sealed master key blob for one user.
// Overwritten in place on password change or reseal, never versioned.
type VaultEntry struct {
	UserID           UserID
	EncryptedKeyBlob []byte
}

// VaultItem is one provider's encrypted credential material:
// JSON plaintext sealed under the user's master key with a per-write nonce.
type VaultItem struct {
	UserID      UserID
	ProviderKey string
	Nonce       []byte
	Ciphertext  []byte
}
