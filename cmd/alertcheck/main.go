// Command alertcheck polls the configured hazard sources once and prints the
// normalized alerts as JSON. It reads the same environment as alertd but never
// publishes to Kafka or touches checkpoints.
//
// Usage:
//
//	go run ./cmd/alertcheck \
//	  -sources usgs-volcano,swpc-geomagnetic \
//	  -lookback 168h \
//	  -active
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/couchcryptid/hazard-alert-feed/internal/adapter/httpfetch"
	"github.com/couchcryptid/hazard-alert-feed/internal/config"
	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
	"github.com/couchcryptid/hazard-alert-feed/internal/observability"
	"github.com/couchcryptid/hazard-alert-feed/internal/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	only := flag.String("sources", "", "comma-separated source keys to poll (default: every enabled source)")
	lookback := flag.Duration("lookback", 0, "only alerts published within this window (default: POLL_LOOKBACK)")
	active := flag.Bool("active", false, "only alerts that are active now")
	strict := flag.Bool("strict", false, "exit non-zero when any source fails")
	verbose := flag.Bool("v", false, "debug logging on stderr")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stdout, os.Stderr, *only, *lookback, *active, *strict, *verbose))
}

func run(ctx context.Context, stdout, stderr io.Writer, only string, lookback time.Duration, active, strict, verbose bool) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	if lookback > 0 {
		cfg.PollLookback = lookback
	}
	if err := selectSources(cfg, only); err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	metrics := observability.NewMetricsForTesting()

	client := httpfetch.NewClient(cfg.FetchTimeout, cfg.FetchRatePerHost, cfg.UserAgent, metrics, logger)
	sources, err := pipeline.BuildSources(cfg, client, httpfetch.NewCachedFetcher(client, cfg.DocumentCacheSize, metrics), logger)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	p := pipeline.New(sources, nil, nil, logger, metrics, pipeline.OptionsFromConfig(cfg))
	results := p.Poll(ctx)

	var alerts []domain.Alert
	failed := 0
	for _, r := range results {
		status := fmt.Sprintf("\033[32mOK (%d alerts)\033[0m", len(r.Alerts))
		if r.Err != nil {
			status = fmt.Sprintf("\033[31mFAIL\033[0m %v", r.Err)
			failed++
		}
		fmt.Fprintf(stderr, "  %-20s %s\n", r.Key, status)
		alerts = append(alerts, r.Alerts...)
	}

	alerts = domain.Normalize(alerts, time.Time{})
	if active {
		alerts = domain.ActiveOnly(alerts, time.Now())
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(alerts); err != nil {
		fmt.Fprintf(stderr, "FATAL: encode alerts: %v\n", err)
		return 1
	}

	if strict && failed > 0 {
		return 1
	}
	return 0
}

// selectSources narrows cfg to the comma-separated keys in only.
func selectSources(cfg *config.Config, only string) error {
	if only == "" {
		return nil
	}
	byName := make(map[string]config.SourceConfig, len(cfg.Sources))
	for _, s := range cfg.Sources {
		byName[s.Name] = s
	}

	var picked []config.SourceConfig
	for _, name := range strings.Split(only, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s, ok := byName[name]
		if !ok {
			return fmt.Errorf("source %q is not configured", name)
		}
		s.Enabled = nil
		picked = append(picked, s)
	}
	if len(picked) == 0 {
		return fmt.Errorf("-sources selects nothing")
	}
	cfg.Sources = picked
	return nil
}
