// Package common defines shared constants and sentinel errors used across
// calhub components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Provider adapter errors. A fetch failure is isolated to its
	// provider/user pair and never fatal to the orchestrator.
	ErrFetchFailed = errors.New("provider fetch failed")

	// Vault errors. ErrWrongPassword is deliberately distinct from
	// ErrVaultCorrupt: the former is user feedback, the latter is an
	// operational problem.
	ErrWrongPassword = errors.New("wrong password")
	ErrVaultLocked   = errors.New("vault is locked")
	ErrVaultCorrupt  = errors.New("vault data is corrupt")
	ErrNoVaultItem   = errors.New("no vault item for provider")

	// Remote calendar errors.
	ErrRemoteAPI = errors.New("remote calendar api error")

	// Auth errors on the trigger surface.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
)
