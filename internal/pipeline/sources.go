package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-alert-feed/internal/config"
	"github.com/couchcryptid/hazard-alert-feed/internal/source"
)

// BuildSources constructs every enabled source from cfg. Feeds are fetched
// with fetcher and follow-up bulletins with documents.
func BuildSources(cfg *config.Config, fetcher, documents source.Fetcher, logger *slog.Logger) ([]Source, error) {
	deps := source.Deps{
		Fetcher:             fetcher,
		Documents:           documents,
		FollowUpConcurrency: cfg.FollowUpConcurrency,
		Logger:              logger,
	}

	enabled := cfg.EnabledSources()
	out := make([]Source, 0, len(enabled))
	for _, sc := range enabled {
		src, err := source.New(sc.Name, sc.Endpoint, deps)
		if err != nil {
			return nil, fmt.Errorf("build source: %w", err)
		}
		out = append(out, Source{Key: sc.Name, AlertSource: src})
	}
	return out, nil
}

// OptionsFromConfig maps the poll settings of cfg onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Interval:             cfg.PollInterval,
		Lookback:             cfg.PollLookback,
		SourceTimeout:        cfg.SourceTimeout,
		MaxConcurrentSources: cfg.MaxConcurrentSources,
	}
}
