package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// DefaultBaseURL is the CODiS day-table endpoint.
const DefaultBaseURL = "http://e-service.cwb.gov.tw/HistoryDataQuery/DayDataController.do?command=viewMain"

// Config holds the runtime settings, populated from environment variables.
// The job itself (stations, dates, data directory) lives in the job file.
type Config struct {
	JobFile string

	LogLevel  string
	LogFormat string

	BaseURL            string
	RequestTimeout     time.Duration
	FetchMaxRetries    int
	FetchRetryInterval time.Duration

	// Optional surfaces; empty disables them.
	HTTPAddr        string
	ShutdownTimeout time.Duration
	KafkaBrokers    []string
	KafkaTopic      string
	MetricsTextfile string
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding the real environment. A missing file is not an
// error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parsePositiveDuration("CODIS_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	retryInterval, err := parsePositiveDuration("FETCH_RETRY_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}

	maxRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_MAX_RETRIES", "2"))
	if err != nil || maxRetries < 0 {
		return nil, errors.New("invalid FETCH_MAX_RETRIES: must be a non-negative integer")
	}

	cfg := &Config{
		JobFile:            sharedcfg.EnvOrDefault("JOB_FILE", "config.json"),
		LogLevel:           strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		BaseURL:            sharedcfg.EnvOrDefault("CODIS_BASE_URL", DefaultBaseURL),
		RequestTimeout:     requestTimeout,
		FetchMaxRetries:    maxRetries,
		FetchRetryInterval: retryInterval,
		HTTPAddr:           os.Getenv("HTTP_ADDR"),
		ShutdownTimeout:    shutdownTimeout,
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "codis-station-outcomes"),
		MetricsTextfile:    os.Getenv("METRICS_TEXTFILE"),
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (allowed: json, text)", cfg.LogFormat)
	}
	if cfg.JobFile == "" {
		return nil, errors.New("JOB_FILE is required")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("invalid CODIS_BASE_URL %q: must be an http(s) URL", cfg.BaseURL)
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether station outcomes are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ParseLogLevel maps a LOG_LEVEL value to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}
