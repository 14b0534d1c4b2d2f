package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Port            string
	EnrichBaseURL   string
	PlacesBaseURL   string
	PlacesAPIKeys   []string
	RequestTimeout  time.Duration
	RateLimitSearch RateLimitConfig
	WorkerPoolSize  int
	MaxInflight     int
	BreakerFailures int
	BreakerReset    time.Duration
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         parseInt(getEnv("REDIS_DB", "0"), 0),
		Port:            getEnv("PORT", "8080"),
		EnrichBaseURL:   getEnv("ENRICH_BASE_URL", "http://worker:9000"),
		PlacesBaseURL:   getEnv("PLACES_BASE_URL", "https://places.googleapis.com"),
		PlacesAPIKeys:   splitList(os.Getenv("PLACES_API_KEYS")),
		RequestTimeout:  parseDuration(getEnv("PLACES_REQUEST_TIMEOUT", "15s")),
		WorkerPoolSize:  parseInt(getEnv("WORKER_POOL_SIZE", "8"), 8),
		MaxInflight:     parseInt(getEnv("PLACES_MAX_INFLIGHT", "25"), 25),
		BreakerFailures: parseInt(getEnv("BREAKER_FAILURES", "5"), 5),
		BreakerReset:    parseDuration(getEnv("BREAKER_RESET", "60s")),
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_SEARCH", "30/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SEARCH value: %w", err)
	}
	cfg.RateLimitSearch = rl

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

func parseInt(input string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return fallback
	}
	return n
}

func splitList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
