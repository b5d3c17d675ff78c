package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Geolocation GeolocationConfig
	Tracking    TrackingConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// GeolocationConfig holds geolocation provider configuration
type GeolocationConfig struct {
	Provider string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// TrackingConfig holds the live tracking pipeline configuration
type TrackingConfig struct {
	// ActiveWindow is how long a session counts as active after its
	// last event
	ActiveWindow time.Duration

	// EventRetention is how long raw events are kept before the sweeper
	// deletes them
	EventRetention time.Duration

	// StreamInterval is the cadence of dashboard stream updates
	StreamInterval time.Duration

	// SnapshotTimeout bounds a single aggregation pass; a slow storage
	// layer skips the tick instead of stalling the stream
	SnapshotTimeout time.Duration

	// RecentEventsWindow is the lookback for the live event feed
	RecentEventsWindow time.Duration

	// VisitorLimit and EventLimit bound dashboard list payloads
	VisitorLimit int
	EventLimit   int

	// DashboardToken guards the /api/live endpoints; empty disables auth
	DashboardToken string

	// SweepSchedule is the cron expression for the event retention sweep
	SweepSchedule string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "storepulse_analytics"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Geolocation: GeolocationConfig{
			Provider: getEnv("GEOLOCATION_PROVIDER", "mock"),
			Timeout:  getEnvAsDuration("GEOLOCATION_TIMEOUT", 3*time.Second),
			CacheTTL: getEnvAsDuration("GEOLOCATION_CACHE_TTL", 24*time.Hour),
		},
		Tracking: TrackingConfig{
			ActiveWindow:       getEnvAsDuration("LIVE_ACTIVE_WINDOW", 30*time.Minute),
			EventRetention:     getEnvAsDuration("LIVE_EVENT_RETENTION", 7*24*time.Hour),
			StreamInterval:     getEnvAsDuration("LIVE_STREAM_INTERVAL", 3*time.Second),
			SnapshotTimeout:    getEnvAsDuration("LIVE_SNAPSHOT_TIMEOUT", 5*time.Second),
			RecentEventsWindow: getEnvAsDuration("LIVE_RECENT_EVENTS_WINDOW", 30*time.Second),
			VisitorLimit:       getEnvAsInt("LIVE_VISITOR_LIMIT", 50),
			EventLimit:         getEnvAsInt("LIVE_EVENT_LIMIT", 10),
			DashboardToken:     getEnv("LIVE_DASHBOARD_TOKEN", ""),
			SweepSchedule:      getEnv("LIVE_SWEEP_SCHEDULE", "@hourly"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "storepulse-analytics"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
