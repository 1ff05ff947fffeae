// Package config reads service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// HTTP server
	ListenAddr string
	JWTSecret  string

	// Provider secrets encryption (hex, 32 bytes)
	SecretKey string

	// Job polling
	PollInterval    time.Duration
	PollMaxAttempts int

	// Seed file with providers and document type schemas
	SeedFile string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// CLI client
	ServerURL string
	APIToken  string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "draftsmith"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "content"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		ListenAddr: getEnv("DRAFTSMITH_LISTEN_ADDR", ":8080"),
		JWTSecret:  getEnv("DRAFTSMITH_JWT_SECRET", ""),

		SecretKey: getEnv("DRAFTSMITH_SECRET_KEY", ""),

		PollInterval:    getDuration("DRAFTSMITH_POLL_INTERVAL", time.Second),
		PollMaxAttempts: getInt("DRAFTSMITH_POLL_MAX_ATTEMPTS", 600),

		SeedFile: getEnv("DRAFTSMITH_SEED_FILE", "draftsmith.yaml"),

		LogFile:  getEnv("DRAFTSMITH_LOG_FILE", "/tmp/draftsmith.log"),
		LogLevel: parseLogLevel(getEnv("DRAFTSMITH_LOG_LEVEL", "INFO")),

		ServerURL: getEnv("DRAFTSMITH_SERVER_URL", "http://localhost:8080"),
		APIToken:  getEnv("DRAFTSMITH_API_TOKEN", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
