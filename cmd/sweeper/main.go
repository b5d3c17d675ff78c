package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/storepulse/analytics-backend/internal/adapters/database"
	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/infrastructure/clients/postgres"
	"github.com/storepulse/analytics-backend/internal/infrastructure/observability"
	"github.com/storepulse/analytics-backend/pkg/config"
)

// The sweeper enforces event retention. It runs as its own binary so the
// deletes never compete with the API's request path.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-sweeper", os.Getenv("APP_ENV"))

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventRepo := database.NewEventAdapter(pgClient)
	retention := services.NewRetentionService(eventRepo, cfg.Tracking.EventRetention, cfg.Tracking.SweepSchedule)

	if err := retention.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start retention sweeper")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Sweeper shutting down")
	cancel()
	retention.Stop()
}
