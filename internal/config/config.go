package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Event backends
const (
	EventsLocal = "local"
	EventsRedis = "redis"
	EventsNone  = "none"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Events     EventsConfig
	Redis      RedisConfig
	Unread     UnreadConfig
	Onboarding OnboardingConfig
	Log        LogConfig
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
	Timeout   time.Duration
}

// EventsConfig selects where domain events are delivered
type EventsConfig struct {
	Backend string
	Prefix  string
}

// RedisConfig holds Redis pub/sub settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// UnreadConfig tunes unread state propagation
type UnreadConfig struct {
	MaxMentions int
	CASRetries  int
	FanoutLimit int
}

// OnboardingConfig holds the default group a new user is placed in
type OnboardingConfig struct {
	OfficialBots     []string
	GroupName        string
	GroupDescription string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnv("DB_PORT", "8000"),
			Namespace: getEnv("DB_NAMESPACE", "chat"),
			Database:  getEnv("DB_DATABASE", "main"),
			User:      getEnv("DB_USER", "root"),
			Password:  getEnv("DB_PASSWORD", "root"),
			Timeout:   getDurationEnv("DB_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			Backend: getEnv("EVENTS_BACKEND", EventsLocal),
			Prefix:  getEnv("EVENTS_PREFIX", "chat:"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Unread: UnreadConfig{
			MaxMentions: getIntEnv("UNREAD_MAX_MENTIONS", 100),
			CASRetries:  getIntEnv("UNREAD_CAS_RETRIES", 8),
			FanoutLimit: getIntEnv("FANOUT_LIMIT", 16),
		},
		Onboarding: OnboardingConfig{
			OfficialBots:     getSliceEnv("OFFICIAL_BOTS", nil),
			GroupName:        getEnv("ONBOARD_GROUP_NAME", "Welcome"),
			GroupDescription: getEnv("ONBOARD_GROUP_DESCRIPTION", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}
	if c.Database.Timeout <= 0 {
		errs = append(errs, errors.New("DB_TIMEOUT must be positive"))
	}

	// Events validation
	switch c.Events.Backend {
	case EventsLocal, EventsNone:
	case EventsRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when EVENTS_BACKEND is redis"))
		}
		if c.Redis.DB < 0 {
			errs = append(errs, errors.New("REDIS_DB must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENTS_BACKEND must be 'local', 'redis', or 'none', got '%s'", c.Events.Backend))
	}

	// Unread validation
	if c.Unread.MaxMentions <= 0 {
		errs = append(errs, errors.New("UNREAD_MAX_MENTIONS must be positive"))
	}
	if c.Unread.CASRetries <= 0 {
		errs = append(errs, errors.New("UNREAD_CAS_RETRIES must be positive"))
	}
	if c.Unread.FanoutLimit <= 0 {
		errs = append(errs, errors.New("FANOUT_LIMIT must be positive"))
	}

	// Onboarding validation
	if len(c.Onboarding.OfficialBots) > 0 && strings.TrimSpace(c.Onboarding.GroupName) == "" {
		errs = append(errs, errors.New("ONBOARD_GROUP_NAME is required when OFFICIAL_BOTS is set"))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ParseLevel maps LOG_LEVEL to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be 'debug', 'info', 'warn', or 'error', got '%s'", level)
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
