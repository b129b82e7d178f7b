package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceName    = "pharmatrack"
	ServiceVersion = "0.3.0"
)

const (
	DefaultNotificationTopic = "pharmacy.notifications"
	BatchTimeout             = 10 * time.Millisecond
	BatchSize                = 100
)

const (
	TracesPath    = "/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

// Config is the process configuration, read from the environment after
// an optional .env file has been loaded.
type Config struct {
	DatabaseURL    string
	Store          string // "postgres" (default) or "memory"
	ServerPort     string
	JWTSecret      string
	AllowedOrigins string
	LogLevel       string

	// Kafka publication of notifications is enabled when KafkaBroker is set.
	KafkaBroker string
	KafkaTopic  string

	// Span export is enabled when OtelEndpoint is set.
	OtelEndpoint   string
	OtelAuthHeader string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Store:          getEnv("STORE", "postgres"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		KafkaTopic:     getEnv("KAFKA_NOTIFICATION_TOPIC", DefaultNotificationTopic),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
	}

	switch cfg.Store {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("STORE must be postgres or memory, got %q", cfg.Store)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
