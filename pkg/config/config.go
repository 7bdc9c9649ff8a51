package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DBHost             string
	DBPort             string
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string
	GoogleClientID     string
	GoogleClientSecret string
	MSClientID         string
	MSClientSecret     string
	MSTenant           string
	EncryptionKey      string
	ServiceTokenSecret string
	SyncInterval       time.Duration
	DrainInterval      time.Duration
	DrainBatchSize     int
	QueueRetentionDays int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	syncInterval := 5 * time.Minute
	if v := os.Getenv("SYNC_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			syncInterval = parsed
		}
	}

	drainInterval := 1 * time.Minute
	if v := os.Getenv("DRAIN_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			drainInterval = parsed
		}
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBName:             getEnv("DB_NAME", "mailstream"),
		DBSSLMode:          getEnv("DB_SSL_MODE", "disable"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		MSClientID:         getEnv("MS_CLIENT_ID", ""),
		MSClientSecret:     getEnv("MS_CLIENT_SECRET", ""),
		MSTenant:           getEnv("MS_TENANT", "common"),
		EncryptionKey:      getEnv("ENCRYPTION_KEY", ""),
		ServiceTokenSecret: getEnv("SERVICE_TOKEN_SECRET", "change-me-in-production"),
		SyncInterval:       syncInterval,
		DrainInterval:      drainInterval,
		DrainBatchSize:     getEnvAsInt("DRAIN_BATCH_SIZE", 25),
		QueueRetentionDays: getEnvAsInt("QUEUE_RETENTION_DAYS", 7),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
