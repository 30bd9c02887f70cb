package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Maps     MapsConfig
	Ride     RideConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	Enabled    bool
	AppName    string
	LicenseKey string
}

// MapsConfig holds Google Maps configuration. An empty API key switches
// distance computation to the offline great-circle fallback.
type MapsConfig struct {
	APIKey string
}

// RideConfig holds the dispatch engine settings.
type RideConfig struct {
	// ExpiryWindow is how long a pending ride stays open for acceptance.
	ExpiryWindow time.Duration
	// SweepInterval is how often the expiry sweeper scans for stale rides.
	SweepInterval time.Duration
	// SearchRadiusKm bounds the nearby-driver query at request time.
	SearchRadiusKm float64
	// CandidateLimit caps how many drivers a new ride is broadcast to.
	CandidateLimit int
	// MaxPickupDistanceKm filters rides shown to a driver by pickup distance.
	MaxPickupDistanceKm float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "dispatch"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
		},
		Maps: MapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		Ride: RideConfig{
			ExpiryWindow:        getDurationEnv("RIDE_EXPIRY_WINDOW", 10*time.Minute),
			SweepInterval:       getDurationEnv("RIDE_SWEEP_INTERVAL", 60*time.Second),
			SearchRadiusKm:      getFloatEnv("RIDE_SEARCH_RADIUS_KM", 10),
			CandidateLimit:      getIntEnv("RIDE_CANDIDATE_LIMIT", 10),
			MaxPickupDistanceKm: getFloatEnv("RIDE_MAX_PICKUP_DISTANCE_KM", 15),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
