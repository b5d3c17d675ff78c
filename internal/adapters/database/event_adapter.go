package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/repositories"
	"github.com/storepulse/analytics-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

const eventsTable = "live_events"

// EventAdapter implements the event log in Postgres
type EventAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEventAdapter creates a new event log adapter
func NewEventAdapter(client *postgres.Client) repositories.EventRepository {
	return &EventAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append writes one event unconditionally; there is no dedup
func (a *EventAdapter) Append(ctx context.Context, event *entities.Event) error {
	if event == nil {
		return apperrors.NewValidationError("event is nil")
	}
	if !event.Type.Valid() {
		return apperrors.NewValidationError("unknown event type: " + string(event.Type))
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return apperrors.NewInternalError("failed to encode event data", err)
	}

	record := goqu.Record{
		"id":         event.ID,
		"session_id": event.SessionID,
		"visitor_id": sql.NullString{String: event.VisitorID, Valid: event.VisitorID != ""},
		"type":       string(event.Type),
		"data":       data,
		"city":       sql.NullString{String: event.City, Valid: event.City != ""},
		"country":    sql.NullString{String: event.Country, Valid: event.Country != ""},
		"timestamp":  event.Timestamp,
	}

	query, args, err := a.db.Insert(eventsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build event insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewUnavailableError("failed to append event", err)
	}
	return nil
}

// Recent returns at most limit events newer than now-since, newest first
func (a *EventAdapter) Recent(ctx context.Context, limit int, since time.Duration) ([]*entities.Event, error) {
	if limit <= 0 {
		limit = 20
	}

	ds := a.db.From(eventsTable).
		Select("id", "session_id", "visitor_id", "type", "data", "city", "country", "timestamp").
		Order(goqu.C("timestamp").Desc()).
		Limit(uint(limit))
	if since > 0 {
		ds = ds.Where(goqu.C("timestamp").Gte(time.Now().UTC().Add(-since)))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build recent events query", err)
	}
	return a.queryEvents(ctx, query, args)
}

// Query is the general read path with optional type filters
func (a *EventAdapter) Query(ctx context.Context, filter repositories.EventFilter, limit int) ([]*entities.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	ds := a.db.From(eventsTable).
		Select("id", "session_id", "visitor_id", "type", "data", "city", "country", "timestamp").
		Order(goqu.C("timestamp").Desc()).
		Limit(uint(limit))
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		ds = ds.Where(goqu.C("type").In(types))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build events query", err)
	}
	return a.queryEvents(ctx, query, args)
}

// DeleteOlderThan removes events past the retention cutoff
func (a *EventAdapter) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := a.db.Delete(eventsTable).
		Where(goqu.C("timestamp").Lt(cutoff)).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build event retention query", err)
	}

	res, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewUnavailableError("failed to delete expired events", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read deleted row count", err)
	}
	return deleted, nil
}

func (a *EventAdapter) queryEvents(ctx context.Context, query string, args []interface{}) ([]*entities.Event, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to query events", err)
	}
	defer rows.Close()

	var events []*entities.Event
	for rows.Next() {
		var (
			e         entities.Event
			visitorID sql.NullString
			city      sql.NullString
			country   sql.NullString
			data      []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &visitorID, &e.Type, &data, &city, &country, &e.Timestamp); err != nil {
			return nil, apperrors.NewInternalError("failed to scan event", err)
		}
		e.VisitorID = visitorID.String
		e.City = city.String
		e.Country = country.String
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, apperrors.NewInternalError("failed to decode event data", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUnavailableError("failed to iterate events", err)
	}
	return events, nil
}
