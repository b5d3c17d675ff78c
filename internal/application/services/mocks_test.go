package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/providers"
	"github.com/storepulse/analytics-backend/internal/domain/repositories"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

// MockSessionRepository is an in-memory session registry implementing the
// same merge semantics as the Redis adapter.
type MockSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*entities.Session
	err      error
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[string]*entities.Session)}
}

func (m *MockSessionRepository) Fail(err error) { m.err = err }

func (m *MockSessionRepository) Upsert(ctx context.Context, sessionID string, patch *entities.SessionPatch) (*entities.Session, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		base := entities.Session{SessionID: sessionID}
		if patch.Base != nil {
			base = *patch.Base
			base.SessionID = sessionID
		}
		session = &base
		m.sessions[sessionID] = session
	}
	patch.ApplyTo(session)

	copied := *session
	return &copied, !exists, nil
}

func (m *MockSessionRepository) ListActive(ctx context.Context, window time.Duration) ([]*entities.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-window)
	active := make([]*entities.Session, 0, len(m.sessions))
	now := time.Now().UTC()
	for _, session := range m.sessions {
		if session.LastActiveAt.Before(cutoff) {
			continue
		}
		copied := *session
		copied.Duration = int(now.Sub(copied.StartedAt).Seconds())
		active = append(active, &copied)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActiveAt.After(active[j].LastActiveAt)
	})
	return active, nil
}

// MockEventRepository is an in-memory append-only event log.
type MockEventRepository struct {
	mu     sync.Mutex
	events []*entities.Event
	err    error
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Fail(err error) { m.err = err }

func (m *MockEventRepository) Events() []*entities.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.Event(nil), m.events...)
}

func (m *MockEventRepository) Append(ctx context.Context, event *entities.Event) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventRepository) Recent(ctx context.Context, limit int, since time.Duration) ([]*entities.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var cutoff time.Time
	if since > 0 {
		cutoff = time.Now().UTC().Add(-since)
	}
	matched := make([]*entities.Event, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		event := m.events[i]
		if !cutoff.IsZero() && event.Timestamp.Before(cutoff) {
			continue
		}
		matched = append(matched, event)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (m *MockEventRepository) Query(ctx context.Context, filter repositories.EventFilter, limit int) ([]*entities.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[entities.EventType]struct{}, len(filter.Types))
	for _, t := range filter.Types {
		wanted[t] = struct{}{}
	}
	matched := make([]*entities.Event, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		event := m.events[i]
		if len(wanted) > 0 {
			if _, ok := wanted[event.Type]; !ok {
				continue
			}
		}
		matched = append(matched, event)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (m *MockEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var deleted int64
	for _, event := range m.events {
		if event.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, event)
	}
	m.events = kept
	return deleted, nil
}

// MockDailyStatsRepository accumulates increments per date in memory.
type MockDailyStatsRepository struct {
	mu     sync.Mutex
	fields map[string]map[string]float64
	err    error
}

func NewMockDailyStatsRepository() *MockDailyStatsRepository {
	return &MockDailyStatsRepository{fields: make(map[string]map[string]float64)}
}

func (m *MockDailyStatsRepository) Fail(err error) { m.err = err }

func (m *MockDailyStatsRepository) Field(date, field string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[date][field]
}

func (m *MockDailyStatsRepository) IncrementFields(ctx context.Context, date string, fields map[string]float64) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fields[date] == nil {
		m.fields[date] = make(map[string]float64)
	}
	for field, amount := range fields {
		// Same whitelist the Postgres adapter enforces, so a field name
		// with no storage column fails here too
		if _, ok := entities.DailyStatsColumn(field); !ok {
			return apperrors.NewValidationError("unknown daily stats field: " + field)
		}
		m.fields[date][field] += amount
	}
	return nil
}

func (m *MockDailyStatsRepository) GetByDate(ctx context.Context, date string) (*entities.DailyStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.fields[date]
	if !ok {
		return nil, apperrors.NewNotFoundError("daily stats not found: " + date)
	}
	return &entities.DailyStats{
		Date:               date,
		TotalVisitors:      int(fields["totalVisitors"]),
		TotalPageViews:     int(fields["totalPageViews"]),
		CartsCreated:       int(fields["cartsCreated"]),
		CartsAbandoned:     int(fields["cartsAbandoned"]),
		AbandonedValue:     fields["abandonedValue"],
		CheckoutsStarted:   int(fields["checkoutsStarted"]),
		CheckoutsCompleted: int(fields["checkoutsCompleted"]),
		OrdersCount:        int(fields["ordersCount"]),
		Revenue:            fields["revenue"],
		DevicesDesktop:     int(fields["devicesDesktop"]),
		DevicesMobile:      int(fields["devicesMobile"]),
		DevicesTablet:      int(fields["devicesTablet"]),
	}, nil
}

// MockEventBus records published events and fans them out to subscribers.
type MockEventBus struct {
	mu          sync.Mutex
	published   []*entities.Event
	subscribers map[string][]chan *entities.Event
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{subscribers: make(map[string][]chan *entities.Event)}
}

func (m *MockEventBus) Published() []*entities.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.Event(nil), m.published...)
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	for _, subscriber := range m.subscribers[channel] {
		select {
		case subscriber <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eventChan := make(chan *entities.Event, 100)
	m.subscribers[channel] = append(m.subscribers[channel], eventChan)
	return eventChan, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, subscriber := range m.subscribers[channel] {
		close(subscriber)
	}
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error { return nil }

// MockGeolocationProvider returns a fixed location for every lookup.
type MockGeolocationProvider struct {
	Location *providers.GeoLocation
}

func (m *MockGeolocationProvider) Lookup(ctx context.Context, ip string) (*providers.GeoLocation, error) {
	if m.Location != nil {
		return m.Location, nil
	}
	return providers.UnknownLocation(), nil
}
