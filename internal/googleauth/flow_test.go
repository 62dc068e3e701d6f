package googleauth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginIssuesUniqueStates(t *testing.T) {
	f := NewFlow("client-id", "client-secret", "https://example.com/callback")

	url1, state1 := f.Begin()
	url2, state2 := f.Begin()

	assert.NotEqual(t, state1, state2)
	require.NoError(t, uuid.Validate(state1))
	assert.Contains(t, url1, "state="+state1)
	assert.Contains(t, url2, "state="+state2)
	assert.Contains(t, url1, "client_id=client-id")

	assert.Len(t, f.pending, 2)
}

func TestCompleteRejectsUnknownState(t *testing.T) {
	f := NewFlow("client-id", "client-secret", "https://example.com/callback")

	_, err := f.Complete(t.Context(), "no-such-state", "code")
	assert.Error(t, err)
}

func TestCompleteRejectsExpiredState(t *testing.T) {
	f := NewFlow("client-id", "client-secret", "https://example.com/callback")

	now := time.Now()
	f.now = func() time.Time { return now }
	_, state := f.Begin()

	f.now = func() time.Time { return now.Add(statePendingTTL + time.Second) }
	_, err := f.Complete(t.Context(), state, "code")
	assert.Error(t, err)
	// The expired entry is consumed either way.
	assert.Empty(t, f.pending)
}

func TestBeginSweepsExpiredStates(t *testing.T) {
	f := NewFlow("client-id", "client-secret", "https://example.com/callback")

	now := time.Now()
	f.now = func() time.Time { return now }
	f.Begin()
	f.Begin()

	f.now = func() time.Time { return now.Add(statePendingTTL + time.Second) }
	_, fresh := f.Begin()

	assert.Len(t, f.pending, 1)
	_, ok := f.pending[fresh]
	assert.True(t, ok)
}

func TestStateIsSingleUse(t *testing.T) {
	f := NewFlow("client-id", "client-secret", "https://example.com/callback")
	_, state := f.Begin()

	// First redemption consumes the state before the exchange happens, so a
	// second attempt fails on the state check regardless of the code.
	_, _ = f.Complete(t.Context(), state, "bogus")
	assert.Empty(t, f.pending)

	_, err := f.Complete(t.Context(), state, "bogus")
	assert.Error(t, err)
}
