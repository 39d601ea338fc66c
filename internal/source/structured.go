package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

// StructuredFeedSource projects a JSON or XML feed straight into alerts.
type StructuredFeedSource struct {
	spec       Specification
	fetcher    Fetcher
	process    ProcessFunc
	activeOnly bool
	logger     *slog.Logger
}

// NewStructuredFeedSource creates a source for spec. process may be nil.
func NewStructuredFeedSource(spec Specification, fetcher Fetcher, process ProcessFunc, activeOnly bool, logger *slog.Logger) *StructuredFeedSource {
	return &StructuredFeedSource{
		spec:       spec,
		fetcher:    fetcher,
		process:    process,
		activeOnly: activeOnly,
		logger:     logger,
	}
}

// Alerts fetches and normalizes the feed. Transport and parse failures are
// returned unchanged; the caller treats them as an empty poll.
func (s *StructuredFeedSource) Alerts(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	drafts, err := fetchDrafts(ctx, s.fetcher, s.spec, s.logger)
	if err != nil {
		return nil, err
	}
	if s.process != nil {
		drafts = s.process(drafts)
	}
	return domain.Normalize(drafts, since), nil
}

func (s *StructuredFeedSource) SystemName() string { return s.spec.SourceName }

func (s *StructuredFeedSource) IsActiveOnly() bool { return s.activeOnly }

// Specification returns the source's specification.
func (s *StructuredFeedSource) Specification() Specification { return s.spec }
