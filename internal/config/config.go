package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of the API service.
type Config struct {
	Port         string
	PostgresURL  string
	KafkaBrokers []string
	RedisAddr    string
	MenuCacheTTL time.Duration
	OTLPEndpoint string
	LogLevel     slog.Level

	// StatusInterval is the scheduler period.
	StatusInterval time.Duration
	// StatusOverride lets PATCH /orders/{id}/status set any known status
	// instead of only the next one.
	StatusOverride bool
	// VerifyOrderTotal rejects orders whose total does not match their items.
	VerifyOrderTotal bool
}

// Load reads envFile when it exists and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.PostgresURL == "" {
		return nil, errors.New("POSTGRES_URL environment variable is required")
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.StatusInterval, err = getDuration("STATUS_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatusInterval <= 0 {
		return nil, fmt.Errorf("STATUS_INTERVAL must be positive, got %s", cfg.StatusInterval)
	}
	if cfg.MenuCacheTTL, err = getDuration("MENU_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StatusOverride, err = getBool("STATUS_OVERRIDE", false); err != nil {
		return nil, err
	}
	if cfg.VerifyOrderTotal, err = getBool("VERIFY_ORDER_TOTAL", false); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
