package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Events   EventsConfig
	Gateway  GatewayConfig
	API      APIConfig
	Dispatch DispatchConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// EventsConfig holds delivery-event publisher configuration (Redis).
// An empty URL disables event publishing.
type EventsConfig struct {
	RedisURL string
	Stream   string
}

// GatewayConfig holds messaging gateway configuration. An empty URL selects
// the mock gateway.
type GatewayConfig struct {
	URL      string
	APIKey   string
	Instance string
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// DispatchConfig holds dispatch loop configuration
type DispatchConfig struct {
	DefaultDelaySeconds int
	MaxDelaySeconds     int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	defaultDelay, err := strconv.Atoi(getEnv("DEFAULT_DELAY_SECONDS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_DELAY_SECONDS: %w", err)
	}

	maxDelay, err := strconv.Atoi(getEnv("MAX_DELAY_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_DELAY_SECONDS: %w", err)
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "dispatch"),
			Password: getEnv("DB_PASSWORD", "dispatch"),
			DBName:   getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Events: EventsConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			Stream:   getEnv("EVENTS_STREAM", "delivery_events"),
		},
		Gateway: GatewayConfig{
			URL:      getEnv("GATEWAY_URL", ""),
			APIKey:   getEnv("GATEWAY_API_KEY", ""),
			Instance: getEnv("GATEWAY_INSTANCE", "default"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Dispatch: DispatchConfig{
			DefaultDelaySeconds: defaultDelay,
			MaxDelaySeconds:     maxDelay,
		},
	}, nil
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
