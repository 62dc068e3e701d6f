// Package googleauth implements the Google login handshake and first-login
// account provisioning.
package googleauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"github.com/msavelyev/calhub/internal/common"
)

// Identity is what a completed login proves about the caller.
type Identity struct {
	Subject string
	Email   string
}

const statePendingTTL = 10 * time.Minute

// Flow runs the two-phase OAuth authorization code handshake. Pending logins
// are correlated with an unguessable state token kept in process memory;
// unredeemed entries expire after statePendingTTL.
type Flow struct {
	cfg *oauth2.Config

	mu      sync.Mutex
	pending map[string]time.Time

	now      func() time.Time
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewFlow builds a login flow for the given OAuth client.
func NewFlow(clientID, clientSecret, redirectURL string) *Flow {
	return &Flow{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email"},
		},
		pending:  make(map[string]time.Time),
		now:      time.Now,
		validate: idtoken.Validate,
	}
}

// Begin registers a pending login and returns the URL to send the user to,
// together with the state token identifying this attempt.
func (f *Flow) Begin() (authURL, state string) {
	state = uuid.NewString()

	f.mu.Lock()
	f.sweepLocked()
	f.pending[state] = f.now().Add(statePendingTTL)
	f.mu.Unlock()

	return f.cfg.AuthCodeURL(state), state
}

// Complete redeems the authorization code for a verified identity. The state
// must match a pending login; each state is redeemable once.
func (f *Flow) Complete(ctx context.Context, state, code string) (*Identity, error) {
	f.mu.Lock()
	expiry, ok := f.pending[state]
	delete(f.pending, state)
	f.mu.Unlock()

	if !ok || f.now().After(expiry) {
		return nil, fmt.Errorf("%w: unknown or expired login state", common.ErrUnauthorized)
	}

	token, err := f.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", common.ErrUnauthorized, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: token response carries no id_token", common.ErrUnauthorized)
	}

	payload, err := f.validate(ctx, rawIDToken, f.cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%w: id token validation: %v", common.ErrInvalidToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	if payload.Subject == "" || email == "" {
		return nil, fmt.Errorf("%w: id token misses subject or email", common.ErrInvalidToken)
	}
	return &Identity{Subject: payload.Subject, Email: email}, nil
}

// sweepLocked drops expired pending entries. Caller holds f.mu.
func (f *Flow) sweepLocked() {
	now := f.now()
	for state, expiry := range f.pending {
		if now.After(expiry) {
			delete(f.pending, state)
		}
	}
}
