package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "hazard-alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 72*time.Hour, cfg.PollLookback)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 4, cfg.MaxConcurrentSources)
	assert.Equal(t, 4, cfg.FollowUpConcurrency)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.InDelta(t, 2.0, cfg.FetchRatePerHost, 0)
	assert.Equal(t, 256, cfg.DocumentCacheSize)
	assert.Contains(t, cfg.UserAgent, "hazard-alert-feed")
	assert.Empty(t, cfg.CheckpointDB)

	names := make([]string, 0, len(cfg.Sources))
	for _, s := range cfg.EnabledSources() {
		names = append(names, s.Name)
		assert.Empty(t, s.Endpoint)
	}
	assert.Equal(t, []string{"ntwc-tsunami", "ptwc-tsunami", "swpc-geomagnetic", "usgs-volcano"}, names)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_ALERT_TOPIC", "custom-alerts")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("POLL_INTERVAL", "1m")
	t.Setenv("POLL_LOOKBACK", "24h")
	t.Setenv("SOURCE_TIMEOUT", "10s")
	t.Setenv("MAX_CONCURRENT_SOURCES", "2")
	t.Setenv("FOLLOWUP_CONCURRENCY", "8")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_RATE_PER_HOST", "0.5")
	t.Setenv("DOCUMENT_CACHE_SIZE", "32")
	t.Setenv("USER_AGENT", "test-agent")
	t.Setenv("CHECKPOINT_DB", "/var/lib/alerts/checkpoints.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.PollLookback)
	assert.Equal(t, 10*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrentSources)
	assert.Equal(t, 8, cfg.FollowUpConcurrency)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.InDelta(t, 0.5, cfg.FetchRatePerHost, 0)
	assert.Equal(t, 32, cfg.DocumentCacheSize)
	assert.Equal(t, "test-agent", cfg.UserAgent)
	assert.Equal(t, "/var/lib/alerts/checkpoints.db", cfg.CheckpointDB)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"POLL_INTERVAL", "soon"},
		{"POLL_LOOKBACK", "0s"},
		{"SOURCE_TIMEOUT", "-5s"},
		{"FETCH_TIMEOUT", "x"},
		{"MAX_CONCURRENT_SOURCES", "0"},
		{"FOLLOWUP_CONCURRENCY", "many"},
		{"DOCUMENT_CACHE_SIZE", "-1"},
		{"FETCH_RATE_PER_HOST", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_ZeroRateDisablesLimiting(t *testing.T) {
	t.Setenv("FETCH_RATE_PER_HOST", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.FetchRatePerHost)
}

func writeSourcesFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_SourcesFile(t *testing.T) {
	t.Setenv("SOURCES_FILE", writeSourcesFile(t, `
sources:
  - name: usgs-volcano
    endpoint: http://mirror.test/elevated
  - name: ptwc-tsunami
    enabled: false
  - name: swpc-geomagnetic
    enabled: true
`))

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 3)

	enabled := cfg.EnabledSources()
	require.Len(t, enabled, 2)
	assert.Equal(t, "usgs-volcano", enabled[0].Name)
	assert.Equal(t, "http://mirror.test/elevated", enabled[0].Endpoint)
	assert.Equal(t, "swpc-geomagnetic", enabled[1].Name)
}

func TestLoad_SourcesFileErrors(t *testing.T) {
	tests := map[string]string{
		"unknown source": "sources:\n  - name: usgs-earthquake\n",
		"duplicate":      "sources:\n  - name: usgs-volcano\n  - name: usgs-volcano\n",
		"all disabled":   "sources:\n  - name: usgs-volcano\n    enabled: false\n",
		"bad yaml":       "sources: [name: {",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SOURCES_FILE", writeSourcesFile(t, body))
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "SOURCES_FILE")
		})
	}
}

func TestLoad_MissingSourcesFile(t *testing.T) {
	t.Setenv("SOURCES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCES_FILE")
}
