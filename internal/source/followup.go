package source

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

// DefaultFollowUpConcurrency bounds in-flight bulletin fetches per poll.
const DefaultFollowUpConcurrency = 4

// FullTextClassifier re-derives an alert from the text of its bulletin.
// It returns the updated alert together with the verdict; title and region
// rewrites only matter when the verdict is active.
type FullTextClassifier interface {
	Classify(a domain.Alert, fullText string) (domain.Alert, domain.Classification)
}

// FollowUpFeedSource reads an Atom or RSS feed whose entries only point at the
// authoritative bulletin. Each entry's link is fetched and classified.
type FollowUpFeedSource struct {
	spec        Specification
	feed        Fetcher
	documents   Fetcher
	process     ProcessFunc
	classifier  FullTextClassifier
	activeOnly  bool
	concurrency int
	logger      *slog.Logger
}

// FollowUpConfig holds the collaborators of a FollowUpFeedSource.
type FollowUpConfig struct {
	// Feed fetches the feed itself. Documents fetches bulletins and defaults
	// to Feed; a caching fetcher fits here since bulletins never change.
	Feed        Fetcher
	Documents   Fetcher
	Process     ProcessFunc
	Classifier  FullTextClassifier
	ActiveOnly  bool
	Concurrency int
}

// NewFollowUpFeedSource creates a follow-up source. spec.Link must locate the
// bulletin link within each entry.
func NewFollowUpFeedSource(spec Specification, cfg FollowUpConfig, logger *slog.Logger) *FollowUpFeedSource {
	if cfg.Documents == nil {
		cfg.Documents = cfg.Feed
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultFollowUpConcurrency
	}
	return &FollowUpFeedSource{
		spec:        spec,
		feed:        cfg.Feed,
		documents:   cfg.Documents,
		process:     cfg.Process,
		classifier:  cfg.Classifier,
		activeOnly:  cfg.ActiveOnly,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// Alerts fetches the feed, follows every entry published after since, and
// normalizes the classified result. An entry whose bulletin cannot be fetched
// is dropped for this poll; the other entries are unaffected.
func (s *FollowUpFeedSource) Alerts(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	b, err := s.Batch(ctx, since)
	return b.Alerts, err
}

// Batch is Alerts plus the earliest entry whose bulletin could not be fetched,
// so the caller can look at that entry again on the next poll.
func (s *FollowUpFeedSource) Batch(ctx context.Context, since time.Time) (Batch, error) {
	drafts, err := fetchDrafts(ctx, s.feed, s.spec, s.logger)
	if err != nil {
		return Batch{}, err
	}
	if s.process != nil {
		drafts = s.process(drafts)
	}
	// Old entries would be discarded by Normalize anyway; skip their bulletins.
	drafts = domain.SinceFilter(drafts, since)

	b, err := s.follow(ctx, drafts)
	if err != nil {
		return Batch{}, err
	}
	b.Alerts = domain.Normalize(b.Alerts, since)
	return b, nil
}

type followResult int

const (
	followDropped followResult = iota
	followKept
	followDeferred
)

func (s *FollowUpFeedSource) follow(ctx context.Context, drafts []domain.Alert) (Batch, error) {
	alerts := make([]domain.Alert, len(drafts))
	outcomes := make([]followResult, len(drafts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range drafts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			alerts[i], outcomes[i] = s.followOne(gctx, drafts[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	var b Batch
	b.Alerts = make([]domain.Alert, 0, len(drafts))
	for i, outcome := range outcomes {
		switch outcome {
		case followKept:
			b.Alerts = append(b.Alerts, alerts[i])
		case followDeferred:
			if b.RetryFrom.IsZero() || drafts[i].PublishedDate.Before(b.RetryFrom) {
				b.RetryFrom = drafts[i].PublishedDate
			}
		}
	}
	return b, nil
}

func (s *FollowUpFeedSource) followOne(ctx context.Context, draft domain.Alert) (domain.Alert, followResult) {
	if draft.Link == "" {
		s.logger.Debug("dropping entry without bulletin link", "source", s.spec.SourceName, "unique_id", draft.UniqueID)
		return draft, followDropped
	}
	doc, err := s.documents.Fetch(ctx, draft.Link)
	if err != nil {
		s.logger.Warn("bulletin fetch failed, deferring entry",
			"source", s.spec.SourceName,
			"unique_id", draft.UniqueID,
			"link", draft.Link,
			"error", err,
		)
		return draft, followDeferred
	}

	updated, cls := s.classifier.Classify(draft, FullText(doc))
	kept, keep := cls.Apply(updated, s.activeOnly)
	if !keep {
		s.logger.Debug("bulletin classified out",
			"source", s.spec.SourceName,
			"unique_id", draft.UniqueID,
			"verdict", cls.Verdict.String(),
		)
		return kept, followDropped
	}
	return kept, followKept
}

func (s *FollowUpFeedSource) SystemName() string { return s.spec.SourceName }

func (s *FollowUpFeedSource) IsActiveOnly() bool { return s.activeOnly }
