// Package events publishes session and sponsorship lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/ports"
)

// Topics
const (
	TopicSessionCreated      = "zksponsor.session.created"
	TopicSessionEnded        = "zksponsor.session.ended"
	TopicSponsorshipExecuted = "zksponsor.sponsorship.executed"
)

// SessionEvent is published when a session starts or ends
type SessionEvent struct {
	Address    string `json:"address"`
	OccurredAt int64  `json:"occurred_at"` // unix ms
}

// SponsorshipEvent is published after a sponsored transaction executes
type SponsorshipEvent struct {
	Digest     string `json:"digest"`
	Claimer    string `json:"claimer"`
	OccurredAt int64  `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	clock     clock.Clock
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, clk clock.Clock) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, clock: clk}
}

// PublishSessionCreated publishes a session created event
func (p *WatermillPublisher) PublishSessionCreated(ctx context.Context, address string) error {
	return p.publish(ctx, TopicSessionCreated, SessionEvent{
		Address:    address,
		OccurredAt: p.clock.Now().UnixMilli(),
	})
}

// PublishSessionEnded publishes a logout event
func (p *WatermillPublisher) PublishSessionEnded(ctx context.Context, address string) error {
	return p.publish(ctx, TopicSessionEnded, SessionEvent{
		Address:    address,
		OccurredAt: p.clock.Now().UnixMilli(),
	})
}

// PublishSponsorshipExecuted publishes an executed sponsorship
func (p *WatermillPublisher) PublishSponsorshipExecuted(ctx context.Context, digest, claimer string) error {
	return p.publish(ctx, TopicSponsorshipExecuted, SponsorshipEvent{
		Digest:     digest,
		Claimer:    claimer,
		OccurredAt: p.clock.Now().UnixMilli(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("published_at", p.clock.Now().UTC().Format(time.RFC3339Nano))

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", topic, err)
	}

	return nil
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)
