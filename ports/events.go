package ports

import "context"

// EventPublisher publishes lifecycle events to notify other instances
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, address string) error
	PublishSessionEnded(ctx context.Context, address string) error
	PublishSponsorshipExecuted(ctx context.Context, digest, claimer string) error
}
