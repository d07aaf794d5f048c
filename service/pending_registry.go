package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/ports"
)

// PendingLogins holds ephemeral login material between begin and complete,
// keyed by the OAuth state token
type PendingLogins struct {
	store ports.Store[core.PendingLogin]
	clock clock.Clock
}

// NewPendingLogins creates a new pending-login registry
func NewPendingLogins(store ports.Store[core.PendingLogin], clk clock.Clock) *PendingLogins {
	return &PendingLogins{store: store, clock: clk}
}

// Put stores login under state until login.ExpiresAt
func (r *PendingLogins) Put(ctx context.Context, state string, login core.PendingLogin) error {
	ttl := login.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("pending login already expired: %w", core.ErrInvalidInput)
	}
	if err := r.store.Put(ctx, state, login, ttl); err != nil {
		return fmt.Errorf("failed to store pending login: %w", err)
	}
	return nil
}

// Take removes and returns the pending login for state. Each state token
// can be taken once.
func (r *PendingLogins) Take(ctx context.Context, state string) (*core.PendingLogin, error) {
	login, err := r.store.Take(ctx, state)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrUnknownState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending login: %w", err)
	}
	return &login, nil
}
