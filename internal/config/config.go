package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Window policy names accepted in WINDOW_POLICY.
var windowPolicies = map[string]bool{"max-max": true, "overlap": true, "union": true}

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL    string
	SeedFile       string
	CurrentDataDir string
	TmpDataDir     string
	ArtifactDir    string

	DownloadEnabled bool
	DownloadTimeout time.Duration
	RunInterval     time.Duration
	WindowPolicy    string
	LegendLang      string

	ElementCacheSize int

	// Kafka sink. No brokers selects the file sink.
	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is read first when
// present; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	downloadEnabled, err := parseBool("DOWNLOAD_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("ELEMENT_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SeedFile:         envOrDefault("SEED_FILE", "providers.yaml"),
		CurrentDataDir:   envOrDefault("CURRENT_DATA_DIR", "data/current"),
		TmpDataDir:       envOrDefault("TMP_DATA_DIR", "data/tmp"),
		ArtifactDir:      envOrDefault("ARTIFACT_DIR", "data/artifacts"),
		DownloadEnabled:  downloadEnabled,
		DownloadTimeout:  downloadTimeout,
		RunInterval:      runInterval,
		WindowPolicy:     envOrDefault("WINDOW_POLICY", "max-max"),
		LegendLang:       envOrDefault("LEGEND_LANG", "es"),
		ElementCacheSize: cacheSize,
		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic:   envOrDefault("KAFKA_SINK_TOPIC", "station-series"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
	}

	if !windowPolicies[cfg.WindowPolicy] {
		return nil, fmt.Errorf("invalid WINDOW_POLICY %q: want max-max, overlap or union", cfg.WindowPolicy)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.CurrentDataDir == cfg.TmpDataDir {
		return nil, errors.New("CURRENT_DATA_DIR and TMP_DATA_DIR must differ")
	}

	return cfg, nil
}

// KafkaEnabled reports whether series are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
