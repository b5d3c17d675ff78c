package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/repositories"
	"github.com/storepulse/analytics-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

const dailyStatsTable = "live_stats_daily"

// DailyStatsAdapter implements the daily aggregate record in Postgres
type DailyStatsAdapter struct {
	client *postgres.Client
}

// NewDailyStatsAdapter creates a new daily stats adapter
func NewDailyStatsAdapter(client *postgres.Client) repositories.DailyStatsRepository {
	return &DailyStatsAdapter{client: client}
}

// IncrementFields upserts the record for the date key and adds the column
// deltas in a single statement, so two concurrent writers never produce a
// second row for the same day. Field names are resolved through the
// DailyStats column whitelist; unknown names are rejected, so no caller
// input ever reaches the statement as an identifier.
func (a *DailyStatsAdapter) IncrementFields(ctx context.Context, date string, fields map[string]float64) error {
	if date == "" {
		return apperrors.NewValidationError("date key is required")
	}
	if len(fields) == 0 {
		return nil
	}

	query, args, err := buildIncrementStatement(date, fields)
	if err != nil {
		return err
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewUnavailableError("failed to increment daily stats", err)
	}
	return nil
}

// buildIncrementStatement resolves increment field names to their storage
// columns and renders the additive upsert
func buildIncrementStatement(date string, fields map[string]float64) (string, []interface{}, error) {
	// Deterministic column order keeps statements stable across calls
	columns := make([]string, 0, len(fields))
	amounts := make(map[string]float64, len(fields))
	for field, amount := range fields {
		col, ok := entities.DailyStatsColumn(field)
		if !ok {
			return "", nil, apperrors.NewValidationError("unknown daily stats field: " + field)
		}
		columns = append(columns, col)
		amounts[col] = amount
	}
	sort.Strings(columns)

	insertCols := make([]string, 0, len(columns)+1)
	placeholders := make([]string, 0, len(columns)+1)
	updates := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns)+1)

	insertCols = append(insertCols, "date")
	placeholders = append(placeholders, "$1")
	args = append(args, date)

	for i, col := range columns {
		insertCols = append(insertCols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		updates = append(updates, fmt.Sprintf("%s = %s.%s + EXCLUDED.%s", col, dailyStatsTable, col, col))
		args = append(args, amounts[col])
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (date) DO UPDATE SET %s",
		dailyStatsTable,
		strings.Join(insertCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	return query, args, nil
}

// GetByDate returns the aggregate record for one date key
func (a *DailyStatsAdapter) GetByDate(ctx context.Context, date string) (*entities.DailyStats, error) {
	query := `
		SELECT date, total_visitors, unique_visitors, returning_visitors,
		       total_page_views, carts_created, carts_abandoned, abandoned_value,
		       checkouts_started, checkouts_completed, orders_count, revenue,
		       devices_desktop, devices_mobile, devices_tablet,
		       traffic_direct, traffic_organic, traffic_social, traffic_referral, traffic_paid
		FROM live_stats_daily
		WHERE date = $1
	`

	s := &entities.DailyStats{}
	err := a.client.DB().QueryRowContext(ctx, query, date).Scan(
		&s.Date,
		&s.TotalVisitors,
		&s.UniqueVisitors,
		&s.ReturningVisitors,
		&s.TotalPageViews,
		&s.CartsCreated,
		&s.CartsAbandoned,
		&s.AbandonedValue,
		&s.CheckoutsStarted,
		&s.CheckoutsCompleted,
		&s.OrdersCount,
		&s.Revenue,
		&s.DevicesDesktop,
		&s.DevicesMobile,
		&s.DevicesTablet,
		&s.TrafficDirect,
		&s.TrafficOrganic,
		&s.TrafficSocial,
		&s.TrafficReferral,
		&s.TrafficPaid,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("no daily stats for " + date)
	}
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to get daily stats", err)
	}
	return s, nil
}
