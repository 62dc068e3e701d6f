// Package vault implements the credential vault: a per-user master key sealed
// under the user's password, in-memory unlock sessions, and encrypted storage
// of per-provider credentials.
package vault

import (
	"sync"

	"github.com/msavelyev/calhub/internal/common"
	"github.com/msavelyev/calhub/internal/models"
)

// State describes a user's vault session as seen by this process.
type State int

const (
	// StateNoKey means no sealed key exists yet for the user.
	StateNoKey State = iota
	// StateLocked means a sealed key exists but this process holds no
	// decrypted copy.
	StateLocked
	// StateUnlocked means the master key is resident in memory.
	StateUnlocked
)

type session struct {
	state          State
	failedAttempts int
	masterKey      []byte
}

// Manager keeps the per-user unlock sessions. Master keys live only here, in
// process memory; they are never written anywhere in the clear. Restarting
// the process locks every vault.
type Manager struct {
	mu       sync.RWMutex
	sessions map[models.UserID]*session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[models.UserID]*session)}
}

// Key returns a copy of the user's master key, or common.ErrVaultLocked if
// the session is not unlocked.
func (m *Manager) Key(userID models.UserID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok || s.state != StateUnlocked {
		return nil, common.ErrVaultLocked
	}
	key := make([]byte, len(s.masterKey))
	copy(key, s.masterKey)
	return key, nil
}

// Status reports the session state and the failed unlock attempt count.
func (m *Manager) Status(userID models.UserID) (State, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok {
		return StateNoKey, 0
	}
	return s.state, s.failedAttempts
}

// Unlocked lists users whose master key is resident.
func (m *Manager) Unlocked() []models.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]models.UserID, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s.state == StateUnlocked {
			ids = append(ids, id)
		}
	}
	return ids
}

// setUnlocked installs the master key and resets the failure counter.
// The manager takes ownership of masterKey.
func (m *Manager) setUnlocked(userID models.UserID, masterKey []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wipeLocked(userID)
	m.sessions[userID] = &session{state: StateUnlocked, masterKey: masterKey}
}

// recordFailure bumps the failed attempt counter and returns the new count.
func (m *Manager) recordFailure(userID models.UserID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || s.state == StateNoKey {
		s = &session{state: StateLocked}
		m.sessions[userID] = s
	}
	s.failedAttempts++
	return s.failedAttempts
}

// Lock discards the resident master key, if any.
func (m *Manager) Lock(userID models.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wipeLocked(userID)
	m.sessions[userID] = &session{state: StateLocked}
}

func (m *Manager) wipeLocked(userID models.UserID) {
	if s, ok := m.sessions[userID]; ok {
		common.WipeByteArray(s.masterKey)
	}
}
