package handlers_test

import (
	"context"
	"sync"
	"time"

	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/providers"
	"github.com/storepulse/analytics-backend/internal/domain/repositories"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

// stubSessionRepository serves a fixed session list and records upserts.
type stubSessionRepository struct {
	mu       sync.Mutex
	active   []*entities.Session
	upserted map[string]*entities.SessionPatch
	err      error
}

func newStubSessionRepository() *stubSessionRepository {
	return &stubSessionRepository{upserted: make(map[string]*entities.SessionPatch)}
}

func (s *stubSessionRepository) Upsert(ctx context.Context, sessionID string, patch *entities.SessionPatch) (*entities.Session, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.upserted[sessionID]
	s.upserted[sessionID] = patch

	session := &entities.Session{SessionID: sessionID, Status: entities.SessionStatusBrowsing}
	if patch.Base != nil {
		copied := *patch.Base
		session = &copied
	}
	patch.ApplyTo(session)
	return session, !seen, nil
}

func (s *stubSessionRepository) ListActive(ctx context.Context, window time.Duration) ([]*entities.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.Session(nil), s.active...), nil
}

// stubEventRepository serves a fixed event list.
type stubEventRepository struct {
	mu     sync.Mutex
	events []*entities.Event
	err    error
}

func (s *stubEventRepository) Append(ctx context.Context, event *entities.Event) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubEventRepository) Recent(ctx context.Context, limit int, since time.Duration) ([]*entities.Event, error) {
	return s.Query(ctx, repositories.EventFilter{}, limit)
}

func (s *stubEventRepository) Query(ctx context.Context, filter repositories.EventFilter, limit int) ([]*entities.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[entities.EventType]struct{}, len(filter.Types))
	for _, t := range filter.Types {
		wanted[t] = struct{}{}
	}
	matched := make([]*entities.Event, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
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

func (s *stubEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// stubDailyStatsRepository accumulates increments per date.
type stubDailyStatsRepository struct {
	mu     sync.Mutex
	fields map[string]map[string]float64
}

func newStubDailyStatsRepository() *stubDailyStatsRepository {
	return &stubDailyStatsRepository{fields: make(map[string]map[string]float64)}
}

func (s *stubDailyStatsRepository) IncrementFields(ctx context.Context, date string, fields map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields[date] == nil {
		s.fields[date] = make(map[string]float64)
	}
	for field, amount := range fields {
		// Same whitelist the Postgres adapter enforces
		if _, ok := entities.DailyStatsColumn(field); !ok {
			return apperrors.NewValidationError("unknown daily stats field: " + field)
		}
		s.fields[date][field] += amount
	}
	return nil
}

func (s *stubDailyStatsRepository) GetByDate(ctx context.Context, date string) (*entities.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.fields[date]
	if !ok {
		return nil, apperrors.NewNotFoundError("daily stats not found: " + date)
	}
	return &entities.DailyStats{
		Date:          date,
		TotalVisitors: int(fields["totalVisitors"]),
		OrdersCount:   int(fields["ordersCount"]),
		Revenue:       fields["revenue"],
	}, nil
}

func (s *stubDailyStatsRepository) field(date, name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[date][name]
}

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.Event
	published   []*entities.Event
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.Event),
		published:   make([]*entities.Event, 0),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.Event) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	channels := append([]chan *entities.Event(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.Event, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	subs := m.subscribers
	m.subscribers = make(map[string][]chan *entities.Event)
	m.mu.Unlock()
	for _, channels := range subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	return nil
}

func (m *MockEventBus) PublishedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.published)
}

type nullGeoProvider struct{}

func (nullGeoProvider) Lookup(ctx context.Context, ip string) (*providers.GeoLocation, error) {
	return providers.UnknownLocation(), nil
}

func newStatsService(sessions *stubSessionRepository, events *stubEventRepository, daily *stubDailyStatsRepository) *services.StatsService {
	return services.NewStatsService(sessions, events, daily, 30*time.Minute, 5*time.Second)
}
