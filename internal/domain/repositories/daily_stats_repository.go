package repositories

import (
	"context"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
)

// DailyStatsRepository persists the per-day aggregate record
type DailyStatsRepository interface {
	// IncrementFields adds the given column deltas to the record for date,
	// creating it lazily on first write. At most one record exists per
	// date regardless of call count.
	IncrementFields(ctx context.Context, date string, fields map[string]float64) error

	// GetByDate returns the record for the date key, or a not-found error
	GetByDate(ctx context.Context, date string) (*entities.DailyStats, error)
}
