package service

import (
	"context"
	"fmt"

	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/ports"
)

// SponsoredTransactions caches gas-attached transactions by digest until
// the claimer countersigns them or they expire
type SponsoredTransactions struct {
	store ports.Store[core.SponsoredTransaction]
	clock clock.Clock
}

// NewSponsoredTransactions creates a new sponsored-transaction registry
func NewSponsoredTransactions(store ports.Store[core.SponsoredTransaction], clk clock.Clock) *SponsoredTransactions {
	return &SponsoredTransactions{store: store, clock: clk}
}

// Put caches tx under digest until tx.ExpiresAt
func (r *SponsoredTransactions) Put(ctx context.Context, digest string, tx core.SponsoredTransaction) error {
	ttl := tx.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("sponsored transaction already expired: %w", core.ErrInvalidInput)
	}
	if err := r.store.Put(ctx, digest, tx, ttl); err != nil {
		return fmt.Errorf("failed to store sponsored transaction: %w", err)
	}
	return nil
}

// Get returns the cached transaction or core.ErrNotFound
func (r *SponsoredTransactions) Get(ctx context.Context, digest string) (*core.SponsoredTransaction, error) {
	tx, err := r.store.Get(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("sponsored transaction %s: %w", digest, err)
	}
	return &tx, nil
}

// Delete drops the cached transaction
func (r *SponsoredTransactions) Delete(ctx context.Context, digest string) error {
	if err := r.store.Delete(ctx, digest); err != nil {
		return fmt.Errorf("failed to delete sponsored transaction: %w", err)
	}
	return nil
}
