package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
)

func TestSweep_DeletesOnlyExpiredEvents(t *testing.T) {
	events := NewMockEventRepository()
	ctx := context.Background()

	old := entities.NewEvent("s1", "", entities.EventPageView, entities.EventData{})
	old.Timestamp = time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, events.Append(ctx, old))

	fresh := entities.NewEvent("s2", "", entities.EventPageView, entities.EventData{})
	require.NoError(t, events.Append(ctx, fresh))

	service := services.NewRetentionService(events, 7*24*time.Hour, "@hourly")
	deleted, err := service.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining := events.Events()
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestSweep_EmptyLog(t *testing.T) {
	events := NewMockEventRepository()
	service := services.NewRetentionService(events, 7*24*time.Hour, "@hourly")

	deleted, err := service.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	events := NewMockEventRepository()
	service := services.NewRetentionService(events, 7*24*time.Hour, "not a schedule")

	err := service.Start(context.Background())
	require.Error(t, err)
}
