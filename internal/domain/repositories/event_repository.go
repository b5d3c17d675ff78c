package repositories

import (
	"context"
	"time"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
)

// EventFilter narrows event queries
type EventFilter struct {
	Types []entities.EventType
}

// EventRepository is the append-only ledger of visitor actions. Events older
// than the retention window are eligible for deletion; callers must not
// assume they persist beyond it.
type EventRepository interface {
	// Append writes one event. The event type must be part of the closed
	// enumeration; a zero timestamp is stamped with now. Duplicates are
	// written as-is, there is no idempotency key.
	Append(ctx context.Context, event *entities.Event) error

	// Recent returns at most limit events newer than now-since, newest
	// first. A zero since means no time bound.
	Recent(ctx context.Context, limit int, since time.Duration) ([]*entities.Event, error)

	// Query is the general read path with optional type filters
	Query(ctx context.Context, filter EventFilter, limit int) ([]*entities.Event, error)

	// DeleteOlderThan removes events with a timestamp before cutoff and
	// reports how many were deleted
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
