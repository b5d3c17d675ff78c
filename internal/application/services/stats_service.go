package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/repositories"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

const topCitiesLimit = 5

// StatsService derives dashboard aggregates from the session registry, the
// event log and the daily stats record.
type StatsService struct {
	sessions repositories.SessionRepository
	events   repositories.EventRepository
	daily    repositories.DailyStatsRepository

	activeWindow    time.Duration
	snapshotTimeout time.Duration
}

// NewStatsService creates a new stats service
func NewStatsService(
	sessions repositories.SessionRepository,
	events repositories.EventRepository,
	daily repositories.DailyStatsRepository,
	activeWindow time.Duration,
	snapshotTimeout time.Duration,
) *StatsService {
	return &StatsService{
		sessions:        sessions,
		events:          events,
		daily:           daily,
		activeWindow:    activeWindow,
		snapshotTimeout: snapshotTimeout,
	}
}

// Snapshot computes a point-in-time summary of the active sessions in a
// single pass. A read slower than the snapshot timeout surfaces as an
// unavailable error so callers can skip the tick instead of blocking.
func (s *StatsService) Snapshot(ctx context.Context) (*entities.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.snapshotTimeout)
	defer cancel()

	sessions, err := s.sessions.ListActive(ctx, s.activeWindow)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewUnavailableError("snapshot timed out", err)
		}
		return nil, apperrors.NewUnavailableError("failed to list active sessions", err)
	}

	snapshot := &entities.Snapshot{Timestamp: time.Now().UTC()}
	cities := make(map[string]*entities.CityCount)

	for _, session := range sessions {
		snapshot.ActiveVisitors++
		if session.CartItems > 0 {
			snapshot.ActiveCarts++
			snapshot.ActiveCartValue += session.CartValue
		}
		if session.Status == entities.SessionStatusCheckout {
			snapshot.InCheckout++
		}

		switch session.Device {
		case entities.DeviceMobile:
			snapshot.DeviceBreakdown.Mobile++
		case entities.DeviceTablet:
			snapshot.DeviceBreakdown.Tablet++
		default:
			snapshot.DeviceBreakdown.Desktop++
		}

		city := session.City
		if city == "" {
			city = "Unknown"
		}
		if entry, ok := cities[city]; ok {
			entry.Visitors++
		} else {
			cities[city] = &entities.CityCount{City: city, Country: session.Country, Visitors: 1}
		}
	}

	snapshot.TopCities = topCities(cities, topCitiesLimit)
	return snapshot, nil
}

// topCities ranks cities by visitor count descending, breaking ties by city
// name ascending for a stable ordering across ticks.
func topCities(cities map[string]*entities.CityCount, limit int) []entities.CityCount {
	ranked := make([]entities.CityCount, 0, len(cities))
	for _, entry := range cities {
		ranked = append(ranked, *entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Visitors != ranked[j].Visitors {
			return ranked[i].Visitors > ranked[j].Visitors
		}
		return ranked[i].City < ranked[j].City
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ActiveVisitors returns the dashboard projection of active sessions, most
// recently active first, capped at limit.
func (s *StatsService) ActiveVisitors(ctx context.Context, limit int) ([]entities.VisitorView, error) {
	sessions, err := s.sessions.ListActive(ctx, s.activeWindow)
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to list active sessions", err)
	}

	now := time.Now().UTC()
	views := make([]entities.VisitorView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, entities.VisitorViewFrom(session, now))
		if limit > 0 && len(views) >= limit {
			break
		}
	}
	return views, nil
}

// RecentEvents returns the live-feed projection of events newer than
// now-since, newest first, capped at limit.
func (s *StatsService) RecentEvents(ctx context.Context, limit int, since time.Duration) ([]entities.EventView, error) {
	events, err := s.events.Recent(ctx, limit, since)
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to query recent events", err)
	}

	views := make([]entities.EventView, 0, len(events))
	for _, event := range events {
		views = append(views, entities.EventViewFrom(event))
	}
	return views, nil
}

// QueryEvents is the general event read path with optional type filters.
func (s *StatsService) QueryEvents(ctx context.Context, types []entities.EventType, limit int) ([]entities.EventView, error) {
	events, err := s.events.Query(ctx, repositories.EventFilter{Types: types}, limit)
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to query events", err)
	}

	views := make([]entities.EventView, 0, len(events))
	for _, event := range events {
		views = append(views, entities.EventViewFrom(event))
	}
	return views, nil
}

// DailyComparison merges today's aggregates with yesterday's. Missing rows
// read as zero; percentage deltas against a zero base are 0 rather than
// infinite.
func (s *StatsService) DailyComparison(ctx context.Context) (*entities.DailyComparison, error) {
	now := time.Now().UTC()

	today, err := s.statsOrZero(ctx, entities.DateKey(now))
	if err != nil {
		return nil, err
	}
	yesterday, err := s.statsOrZero(ctx, entities.DateKey(now.AddDate(0, 0, -1)))
	if err != nil {
		return nil, err
	}

	comparison := &entities.DailyComparison{
		TodayRevenue:     today.Revenue,
		TodayOrders:      today.OrdersCount,
		TodayVisitors:    today.TotalVisitors,
		AbandonedCarts:   today.CartsAbandoned,
		AbandonedValue:   today.AbandonedValue,
		YesterdayRevenue: yesterday.Revenue,
		RevenueChange:    percentChange(yesterday.Revenue, today.Revenue),
		OrdersChange:     percentChange(float64(yesterday.OrdersCount), float64(today.OrdersCount)),
		VisitorsChange:   percentChange(float64(yesterday.TotalVisitors), float64(today.TotalVisitors)),
	}
	if today.TotalVisitors > 0 {
		comparison.ConversionRate = float64(today.OrdersCount) / float64(today.TotalVisitors) * 100
	}
	return comparison, nil
}

func (s *StatsService) statsOrZero(ctx context.Context, date string) (*entities.DailyStats, error) {
	stats, err := s.daily.GetByDate(ctx, date)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return &entities.DailyStats{Date: date}, nil
		}
		return nil, apperrors.NewUnavailableError("failed to read daily stats", err)
	}
	return stats, nil
}

// percentChange is (current-previous)/previous*100, or 0 when previous is 0.
func percentChange(previous, current float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// RecordDailyIncrement adds amount to one whitelisted field of today's
// record. Unknown fields are rejected with a validation error.
func (s *StatsService) RecordDailyIncrement(ctx context.Context, field string, amount float64) error {
	if _, ok := entities.DailyStatsColumn(field); !ok {
		return apperrors.NewValidationError("unknown daily stats field: " + field)
	}
	date := entities.DateKey(time.Now().UTC())
	if err := s.daily.IncrementFields(ctx, date, map[string]float64{field: amount}); err != nil {
		return apperrors.NewUnavailableError("failed to increment daily stats", err)
	}
	return nil
}
