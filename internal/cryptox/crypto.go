// Package cryptox implements the vault crypto primitives: password-based
// sealing of the per-user master key and authenticated encryption of vault
// items under that key.
//
// The master key is a random 32-byte value. It is never stored in the clear:
// at rest it only exists inside a sealed blob, encrypted with
// ChaCha20-Poly1305 under a key derived from the user's password with
// argon2id and a random salt. Every reseal uses a fresh salt and nonce, so
// two seals of the same key under the same password produce different blobs.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/msavelyev/calhub/internal/common"
)

const (
	// MasterKeySize is the size of the random symmetric key sealed in the vault.
	MasterKeySize = chacha20poly1305.KeySize

	saltSize = 16

	// argon2id parameters, matching common interactive-use recommendations.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// SealedKey is the serialized form of a password-sealed master key.
// It is stored as a JSON blob in the vault_entry table.
type SealedKey struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveKey stretches a password into a 32-byte key using argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, MasterKeySize)
}

// MakeVerifier returns a short digest of the master key, usable for
// constant-time equality checks without exposing the key itself.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// VerifierEqual compares two verifiers in constant time.
func VerifierEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// NewMasterKey generates a fresh random master key.
func NewMasterKey() []byte {
	return common.GenerateRandByteArray(MasterKeySize)
}

// SealKey encrypts masterKey under the given password with a fresh random
// salt and nonce, and returns the serialized blob.
func SealKey(masterKey, password []byte) ([]byte, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("unexpected master key size: %d", len(masterKey))
	}

	salt := common.GenerateRandByteArray(saltSize)
	kek := DeriveKey(password, salt)
	defer common.WipeByteArray(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	sealed := SealedKey{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, masterKey, nil),
	}

	blob, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("blob serialization: %w", err)
	}
	return blob, nil
}

// OpenKey decrypts a sealed blob with the given password and returns the raw
// master key.
//
// A blob that does not decode is reported as common.ErrVaultCorrupt; a blob
// that decodes but fails authentication is reported as
// common.ErrWrongPassword so callers can give the user actionable feedback.
func OpenKey(blob, password []byte) ([]byte, error) {
	var sealed SealedKey
	if err := json.Unmarshal(blob, &sealed); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrVaultCorrupt, err)
	}
	if len(sealed.Salt) != saltSize || len(sealed.Nonce) != chacha20poly1305.NonceSize {
		return nil, common.ErrVaultCorrupt
	}

	kek := DeriveKey(password, sealed.Salt)
	defer common.WipeByteArray(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}

	masterKey, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		// Authentication failure: either a wrong password or tampered
		// ciphertext. Indistinguishable by construction; wrong password is
		// the overwhelmingly likely case.
		return nil, common.ErrWrongPassword
	}
	if len(masterKey) != MasterKeySize {
		return nil, common.ErrVaultCorrupt
	}
	return masterKey, nil
}

// EncryptItem serializes v to JSON and encrypts it with ChaCha20-Poly1305
// under the master key, returning the ciphertext and the freshly generated
// nonce separately (they are stored in separate columns).
func EncryptItem(v any, masterKey []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("item serialization: %w", err)
	}

	aead, err := chacha20poly1305.New(masterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("cipher init: %w", err)
	}

	nonce = common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptItem decrypts a vault item and unmarshals the JSON plaintext into v.
// An authentication failure is fatal for the call and surfaces as
// common.ErrVaultCorrupt; partial data is never returned.
func DecryptItem(ciphertext, nonce, masterKey []byte, v any) error {
	aead, err := chacha20poly1305.New(masterKey)
	if err != nil {
		return fmt.Errorf("cipher init: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: authentication failed", common.ErrVaultCorrupt)
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("item deserialization: %w", err)
	}
	return nil
}
