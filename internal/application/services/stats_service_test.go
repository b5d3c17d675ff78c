package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

func newStatsFixture() (*MockSessionRepository, *MockEventRepository, *MockDailyStatsRepository, *services.StatsService) {
	sessions := NewMockSessionRepository()
	events := NewMockEventRepository()
	daily := NewMockDailyStatsRepository()
	service := services.NewStatsService(sessions, events, daily, 30*time.Minute, 5*time.Second)
	return sessions, events, daily, service
}

func seedSession(t *testing.T, sessions *MockSessionRepository, id string, mutate func(*entities.Session)) {
	t.Helper()
	now := time.Now().UTC()
	base := &entities.Session{
		SessionID:    id,
		City:         "Berlin",
		Country:      "Germany",
		Device:       entities.DeviceDesktop,
		Status:       entities.SessionStatusBrowsing,
		StartedAt:    now,
		LastActiveAt: now,
	}
	if mutate != nil {
		mutate(base)
	}
	_, _, err := sessions.Upsert(context.Background(), id, &entities.SessionPatch{Base: base, LastActiveAt: base.LastActiveAt})
	require.NoError(t, err)
}

func TestSnapshot_Aggregates(t *testing.T) {
	sessions, _, _, service := newStatsFixture()

	seedSession(t, sessions, "s1", nil)
	seedSession(t, sessions, "s2", func(s *entities.Session) {
		s.City = "London"
		s.Country = "United Kingdom"
		s.Device = entities.DeviceMobile
		s.Status = entities.SessionStatusCart
		s.CartItems = 2
		s.CartValue = 59.9
	})
	seedSession(t, sessions, "s3", func(s *entities.Session) {
		s.Device = entities.DeviceTablet
		s.Status = entities.SessionStatusCheckout
		s.CartItems = 1
		s.CartValue = 20
	})

	snapshot, err := service.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.ActiveVisitors)
	assert.Equal(t, 2, snapshot.ActiveCarts)
	assert.InDelta(t, 79.9, snapshot.ActiveCartValue, 0.001)
	assert.Equal(t, 1, snapshot.InCheckout)
	assert.Equal(t, 1, snapshot.DeviceBreakdown.Desktop)
	assert.Equal(t, 1, snapshot.DeviceBreakdown.Mobile)
	assert.Equal(t, 1, snapshot.DeviceBreakdown.Tablet)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestSnapshot_TopCitiesTieBreak(t *testing.T) {
	sessions, _, _, service := newStatsFixture()

	cities := []string{"Berlin", "Berlin", "Lagos", "Lagos", "Amsterdam", "Chicago", "Tokyo", "Oslo", "Paris"}
	for i, city := range cities {
		name := city
		seedSession(t, sessions, string(rune('a'+i)), func(s *entities.Session) { s.City = name })
	}

	snapshot, err := service.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.TopCities, 5)
	assert.Equal(t, "Berlin", snapshot.TopCities[0].City)
	assert.Equal(t, "Lagos", snapshot.TopCities[1].City)
	// Singleton cities tie; lexical order decides.
	assert.Equal(t, "Amsterdam", snapshot.TopCities[2].City)
	assert.Equal(t, "Chicago", snapshot.TopCities[3].City)
	assert.Equal(t, "Oslo", snapshot.TopCities[4].City)
}

func TestSnapshot_ExcludesExpiredSessions(t *testing.T) {
	sessions, _, _, service := newStatsFixture()

	seedSession(t, sessions, "fresh", nil)
	seedSession(t, sessions, "stale", func(s *entities.Session) {
		s.StartedAt = time.Now().UTC().Add(-2 * time.Hour)
		s.LastActiveAt = time.Now().UTC().Add(-45 * time.Minute)
	})

	snapshot, err := service.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.ActiveVisitors)
}

func TestSnapshot_StorageFailure(t *testing.T) {
	sessions, _, _, service := newStatsFixture()
	sessions.Fail(assert.AnError)

	_, err := service.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
}

func TestActiveVisitors_LimitAndOrder(t *testing.T) {
	sessions, _, _, service := newStatsFixture()

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		idx := i
		seedSession(t, sessions, string(rune('a'+i)), func(s *entities.Session) {
			s.LastActiveAt = base.Add(-time.Duration(idx) * time.Minute)
		})
	}

	visitors, err := service.ActiveVisitors(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, visitors, 2)
	assert.Equal(t, "a", visitors[0].ID)
	assert.Equal(t, "b", visitors[1].ID)
}

func TestRecentEvents_Projection(t *testing.T) {
	_, events, _, service := newStatsFixture()

	event := entities.NewEvent("s1", "v1", entities.EventAddToCart, entities.EventData{ProductID: "p1"})
	event.City = "Lagos"
	require.NoError(t, events.Append(context.Background(), event))

	views, err := service.RecentEvents(context.Background(), 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Lagos", views[0].Visitor)
	assert.Equal(t, entities.EventAddToCart, views[0].Type)
}

func TestDailyComparison_ZeroBase(t *testing.T) {
	_, _, daily, service := newStatsFixture()

	todayKey := entities.DateKey(time.Now().UTC())
	require.NoError(t, daily.IncrementFields(context.Background(), todayKey, map[string]float64{
		"revenue":       150,
		"ordersCount":   3,
		"totalVisitors": 10,
	}))

	comparison, err := service.DailyComparison(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 150.0, comparison.TodayRevenue)
	assert.Equal(t, 3, comparison.TodayOrders)
	assert.Equal(t, 10, comparison.TodayVisitors)
	// No record for yesterday: every change reads 0, not +Inf.
	assert.Zero(t, comparison.RevenueChange)
	assert.Zero(t, comparison.OrdersChange)
	assert.Zero(t, comparison.VisitorsChange)
	assert.InDelta(t, 30.0, comparison.ConversionRate, 0.001)
}

func TestDailyComparison_PercentDeltas(t *testing.T) {
	_, _, daily, service := newStatsFixture()

	now := time.Now().UTC()
	require.NoError(t, daily.IncrementFields(context.Background(), entities.DateKey(now.AddDate(0, 0, -1)), map[string]float64{
		"revenue":       100,
		"ordersCount":   2,
		"totalVisitors": 20,
	}))
	require.NoError(t, daily.IncrementFields(context.Background(), entities.DateKey(now), map[string]float64{
		"revenue":       150,
		"ordersCount":   1,
		"totalVisitors": 30,
	}))

	comparison, err := service.DailyComparison(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50.0, comparison.RevenueChange, 0.001)
	assert.InDelta(t, -50.0, comparison.OrdersChange, 0.001)
	assert.InDelta(t, 50.0, comparison.VisitorsChange, 0.001)
}

func TestDailyComparison_NoData(t *testing.T) {
	_, _, _, service := newStatsFixture()

	comparison, err := service.DailyComparison(context.Background())
	require.NoError(t, err)
	assert.Zero(t, comparison.TodayRevenue)
	assert.Zero(t, comparison.ConversionRate)
}

func TestRecordDailyIncrement(t *testing.T) {
	_, _, daily, service := newStatsFixture()

	require.NoError(t, service.RecordDailyIncrement(context.Background(), "revenue", 49.99))
	require.NoError(t, service.RecordDailyIncrement(context.Background(), "revenue", 10))

	todayKey := entities.DateKey(time.Now().UTC())
	assert.InDelta(t, 59.99, daily.Field(todayKey, "revenue"), 0.001)

	err := service.RecordDailyIncrement(context.Background(), "numberOfPets", 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
