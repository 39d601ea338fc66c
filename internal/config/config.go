package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/hazard-alert-feed/internal/source"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers    []string
	KafkaAlertTopic string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Polling.
	PollInterval         time.Duration
	PollLookback         time.Duration
	SourceTimeout        time.Duration
	MaxConcurrentSources int
	FollowUpConcurrency  int

	// Transport.
	FetchTimeout      time.Duration
	FetchRatePerHost  float64
	DocumentCacheSize int
	UserAgent         string

	// CheckpointDB is the SQLite file holding per-source checkpoints. Empty
	// keeps checkpoints in memory.
	CheckpointDB string

	// Sources lists the enabled sources. It defaults to every built-in source
	// and can be narrowed by SOURCES_FILE.
	Sources []SourceConfig
}

// SourceConfig enables one built-in source, optionally against a different
// endpoint (a mirror or a test fixture server).
type SourceConfig struct {
	Name     string `yaml:"name"`
	Enabled  *bool  `yaml:"enabled"`  // nil means enabled
	Endpoint string `yaml:"endpoint"` // empty means the agency default
}

// IsEnabled reports whether the source should be polled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	pollLookback, err := parseDuration("POLL_LOOKBACK", "72h")
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := parseDuration("SOURCE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	maxSources, err := parsePositiveInt("MAX_CONCURRENT_SOURCES", 4)
	if err != nil {
		return nil, err
	}
	followUps, err := parsePositiveInt("FOLLOWUP_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("DOCUMENT_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	ratePerHost, err := parseRate("FETCH_RATE_PER_HOST", "2")
	if err != nil {
		return nil, err
	}

	sources, err := loadSources(os.Getenv("SOURCES_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "hazard-alerts"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollInterval:         pollInterval,
		PollLookback:         pollLookback,
		SourceTimeout:        sourceTimeout,
		MaxConcurrentSources: maxSources,
		FollowUpConcurrency:  followUps,

		FetchTimeout:      fetchTimeout,
		FetchRatePerHost:  ratePerHost,
		DocumentCacheSize: cacheSize,
		UserAgent:         sharedcfg.EnvOrDefault("USER_AGENT", "hazard-alert-feed/1.0 (+https://github.com/couchcryptid/hazard-alert-feed)"),

		CheckpointDB: os.Getenv("CHECKPOINT_DB"),
		Sources:      sources,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required")
	}
	if len(cfg.EnabledSources()) == 0 {
		return nil, errors.New("SOURCES_FILE disables every source")
	}

	return cfg, nil
}

// EnabledSources returns the sources to poll, in configuration order.
func (c *Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// loadSources reads the optional SOURCES_FILE. Without one every built-in
// source is enabled at its default endpoint.
func loadSources(path string) ([]SourceConfig, error) {
	if path == "" {
		keys := source.Keys()
		out := make([]SourceConfig, len(keys))
		for i, k := range keys {
			out[i] = SourceConfig{Name: k}
		}
		return out, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SOURCES_FILE: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse SOURCES_FILE: %w", err)
	}

	seen := make(map[string]bool, len(f.Sources))
	for _, s := range f.Sources {
		if _, ok := source.DefaultEndpoint(s.Name); !ok {
			return nil, fmt.Errorf("SOURCES_FILE: unknown source %q", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("SOURCES_FILE: source %q listed twice", s.Name)
		}
		seen[s.Name] = true
	}
	return f.Sources, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	v := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

// parseRate accepts zero, which disables per-host limiting.
func parseRate(key, def string) (float64, error) {
	v := sharedcfg.EnvOrDefault(key, def)
	r, err := strconv.ParseFloat(v, 64)
	if err != nil || r < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return r, nil
}
