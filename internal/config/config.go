package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the process needs before it starts serving.
// Load fails on any missing or malformed required value.
type Config struct {
	DatabaseURL string
	Port        string
	AppEnv      string
	SentryDSN   string

	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
	RefreshTTL     time.Duration

	GoogleClientID   string
	FacebookGraphURL string

	CleanupInterval time.Duration
	TokenRetention  time.Duration
	CleanupBackoff  time.Duration

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		Port:             envOrDefault("PORT", "8080"),
		AppEnv:           envOrDefault("APP_ENV", "development"),
		SentryDSN:        strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		FacebookGraphURL: envOrDefault("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),

		CleanupInterval: envHoursOrDefault("TOKEN_CLEANUP_INTERVAL_HOURS", 24),
		TokenRetention:  envDaysOrDefault("TOKEN_RETENTION_DAYS", 30),
		CleanupBackoff:  envMinutesOrDefault("TOKEN_CLEANUP_BACKOFF_MINUTES", 5),

		DBMaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return Config{}, err
	}
	if cfg.JWTIssuer, err = requireEnv("JWT_ISSUER"); err != nil {
		return Config{}, err
	}
	if cfg.JWTAudience, err = requireEnv("JWT_AUDIENCE"); err != nil {
		return Config{}, err
	}
	if cfg.GoogleClientID, err = requireEnv("GOOGLE_CLIENT_ID"); err != nil {
		return Config{}, err
	}

	accessMinutes, err := requireEnvInt("ACCESS_TOKEN_TTL_MINUTES")
	if err != nil {
		return Config{}, err
	}
	cfg.AccessTokenTTL = time.Duration(accessMinutes) * time.Minute

	refreshDays, err := requireEnvInt("REFRESH_TOKEN_TTL_DAYS")
	if err != nil {
		return Config{}, err
	}
	cfg.RefreshTTL = time.Duration(refreshDays) * 24 * time.Hour

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func requireEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func requireEnvInt(name string) (int, error) {
	value, err := requireEnv(name)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("env %s must be a positive integer, got %q", name, value)
	}
	return parsed, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
