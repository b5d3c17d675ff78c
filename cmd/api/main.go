package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storepulse/analytics-backend/internal/adapters/cache"
	"github.com/storepulse/analytics-backend/internal/adapters/database"
	"github.com/storepulse/analytics-backend/internal/adapters/events"
	"github.com/storepulse/analytics-backend/internal/adapters/providers/geolocation"
	"github.com/storepulse/analytics-backend/internal/adapters/sessionstore"
	"github.com/storepulse/analytics-backend/internal/api/handlers"
	"github.com/storepulse/analytics-backend/internal/api/routes"
	"github.com/storepulse/analytics-backend/internal/application/services"
	"github.com/storepulse/analytics-backend/internal/domain/providers"
	"github.com/storepulse/analytics-backend/internal/infrastructure/clients/postgres"
	"github.com/storepulse/analytics-backend/internal/infrastructure/clients/redis"
	"github.com/storepulse/analytics-backend/internal/infrastructure/observability"
	"github.com/storepulse/analytics-backend/pkg/config"
)

func main() {

	// Load configuration

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Initialize Redis client. The session registry and the live stream both
	// need it, so unlike a cache this one is not optional.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	// Initialize adapters

	sessionRepo := sessionstore.NewRedisSessionStore(redisClient, cfg.Tracking.ActiveWindow)
	eventRepo := database.NewEventAdapter(pgClient)
	dailyRepo := database.NewDailyStatsAdapter(pgClient)
	cacheProvider := cache.NewRedisAdapter(redisClient)

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	var geoProvider providers.GeolocationProvider
	switch cfg.Geolocation.Provider {
	case "ipapi":
		geoProvider = geolocation.NewIPAPIGeolocationProvider(cacheProvider, cfg.Geolocation.CacheTTL, cfg.Geolocation.Timeout)
		log.Info().Msg("Using ip-api.com geolocation provider")
	default:
		geoProvider = geolocation.NewMockGeolocationProvider()
		log.Info().Msg("Using mock geolocation provider")
	}

	// Initialize services

	trackingService := services.NewTrackingService(sessionRepo, eventRepo, dailyRepo, eventBus, geoProvider)
	statsService := services.NewStatsService(
		sessionRepo,
		eventRepo,
		dailyRepo,
		cfg.Tracking.ActiveWindow,
		cfg.Tracking.SnapshotTimeout,
	)

	// Initialize handlers

	trackHandler := handlers.NewTrackHandler(trackingService, metrics)
	liveHandler := handlers.NewLiveHandler(statsService, cfg.Tracking.VisitorLimit, cfg.Tracking.RecentEventsWindow)
	streamHandler := handlers.NewStreamHandler(
		statsService,
		eventBus,
		metrics,
		cfg.Tracking.StreamInterval,
		cfg.Tracking.RecentEventsWindow,
		cfg.Tracking.VisitorLimit,
		cfg.Tracking.EventLimit,
	)

	router := routes.NewRouter(trackHandler, liveHandler, streamHandler, cfg.Tracking.DashboardToken, metrics)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router.SetupRoutes(),
		// No WriteTimeout: the SSE stream holds its connection open.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
