package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/storepulse/analytics-backend/internal/domain/repositories"
)

// RetentionService deletes events older than the retention window on a cron
// schedule. Sessions need no sweep; their store expires them natively.
type RetentionService struct {
	events    repositories.EventRepository
	retention time.Duration
	schedule  string
	cron      *cron.Cron
}

// NewRetentionService creates a new retention sweeper
func NewRetentionService(events repositories.EventRepository, retention time.Duration, schedule string) *RetentionService {
	return &RetentionService{
		events:    events,
		retention: retention,
		schedule:  schedule,
		cron:      cron.New(),
	}
}

// Start registers the sweep on the configured schedule and runs one sweep
// immediately so a long-stopped worker catches up on startup.
func (s *RetentionService) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Retention sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("Initial retention sweep failed")
	}

	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Dur("retention", s.retention).Msg("Retention sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *RetentionService) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Retention sweeper stopped")
}

// Sweep deletes events older than now - retention and reports how many rows
// were removed.
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	deleted, err := s.events.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Expired events removed")
	}
	return deleted, nil
}
