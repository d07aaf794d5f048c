package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/ports"
)

// Sessions is the registry of authenticated zkLogin sessions keyed by an
// opaque session token
type Sessions struct {
	store    ports.Store[core.Session]
	eventPub ports.EventPublisher
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSessions creates a new session registry
func NewSessions(store ports.Store[core.Session], eventPub ports.EventPublisher, clk clock.Clock, logger *slog.Logger) *Sessions {
	return &Sessions{
		store:    store,
		eventPub: eventPub,
		clock:    clk,
		logger:   logger,
	}
}

// Create stores session under a new token for ttl
func (r *Sessions) Create(ctx context.Context, session core.Session, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("session ttl must be positive: %w", core.ErrInvalidInput)
	}

	token := uuid.New().String()
	session.ExpiresAt = r.clock.Now().Add(ttl)

	if err := r.store.Put(ctx, token, session, ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session: %w", err)
	}

	return token, session.ExpiresAt, nil
}

// Get returns the live session for token. Missing, unknown and expired
// sessions are all reported as core.ErrUnauthenticated.
func (r *Sessions) Get(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrUnauthenticated
	}

	session, err := r.store.Get(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	// The backing store may round TTLs; the recorded expiry is authoritative.
	if r.clock.Now().After(session.ExpiresAt) {
		if err := r.store.Delete(ctx, token); err != nil {
			r.logger.Warn("failed to evict expired session", "error", err)
		}
		return nil, core.ErrUnauthenticated
	}

	return &session, nil
}

// Delete removes the session. Deleting an absent session is not an error.
func (r *Sessions) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := r.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Logout deletes the session and announces it ended. The delete is
// attempted even when the session cannot be read.
func (r *Sessions) Logout(ctx context.Context, token string) error {
	session, err := r.Get(ctx, token)
	if err != nil && !errors.Is(err, core.ErrUnauthenticated) {
		r.logger.Warn("failed to read session on logout", "error", err)
	}

	if err := r.Delete(ctx, token); err != nil {
		return err
	}

	if session != nil {
		if err := r.eventPub.PublishSessionEnded(ctx, session.Address); err != nil {
			// The session is already gone, which is the part that matters
			r.logger.Warn("failed to publish session ended event", "address", session.Address, "error", err)
		}
	}

	return nil
}
