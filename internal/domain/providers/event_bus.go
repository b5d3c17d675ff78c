package providers

import (
	"context"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// accepted visitor events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.Event) error

	// Subscribe subscribes to events on a channel; the returned channel is
	// closed when ctx is cancelled
	Subscribe(ctx context.Context, channel string) (<-chan *entities.Event, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelLive carries every accepted visitor event for the
	// dashboard live feed
	EventChannelLive = "live:events"
)
