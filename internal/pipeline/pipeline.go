package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
	"github.com/couchcryptid/hazard-alert-feed/internal/observability"
	"github.com/couchcryptid/hazard-alert-feed/internal/source"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchLoader writes a batch of alerts to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, alerts []domain.Alert) error
}

// Source pairs an alert source with the key its checkpoint is stored under.
// Two sources may share a SystemName, so the key is what tells them apart.
type Source struct {
	Key string
	source.AlertSource
}

// Options tune the poll loop.
type Options struct {
	Interval             time.Duration
	Lookback             time.Duration
	SourceTimeout        time.Duration
	MaxConcurrentSources int
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Result is what one source contributed to a poll. RetryFrom is copied from
// the source's Batch and caps how far its checkpoint may advance.
type Result struct {
	Key       string
	Since     time.Time
	Alerts    []domain.Alert
	RetryFrom time.Time
	Err       error
}

// SourceStatus is the outcome of the most recent poll of one source.
type SourceStatus struct {
	Key        string    `json:"key"`
	SystemName string    `json:"system_name"`
	ActiveOnly bool      `json:"active_only"`
	LastPoll   time.Time `json:"last_poll"`
	Since      time.Time `json:"since"`
	Outcome    string    `json:"outcome,omitempty"`
	Error      string    `json:"error,omitempty"`
	Alerts     int       `json:"alerts"`
}

// Pipeline polls every source, merges their alerts, and publishes them.
type Pipeline struct {
	sources     []Source
	loader      BatchLoader
	checkpoints CheckpointStore
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	opts        Options
	ready       atomic.Bool

	mu     sync.Mutex
	status map[string]SourceStatus
}

// New creates a Pipeline over the given sources. A nil checkpoint store keeps
// checkpoints in memory.
func New(sources []Source, loader BatchLoader, checkpoints CheckpointStore, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MaxConcurrentSources <= 0 {
		opts.MaxConcurrentSources = 1
	}
	if checkpoints == nil {
		checkpoints = NewMemoryCheckpoints()
	}
	metrics.SourcesConfigured.Set(float64(len(sources)))
	return &Pipeline{
		sources:     sources,
		loader:      loader,
		checkpoints: checkpoints,
		logger:      logger,
		metrics:     metrics,
		clock:       opts.Clock,
		opts:        opts,
		status:      make(map[string]SourceStatus, len(sources)),
	}
}

// Status reports the latest poll of every source, in source order. Sources
// not polled yet have a zero LastPoll.
func (p *Pipeline) Status() []SourceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SourceStatus, len(p.sources))
	for i, s := range p.sources {
		st, ok := p.status[s.Key]
		if !ok {
			st = SourceStatus{Key: s.Key, SystemName: s.SystemName(), ActiveOnly: s.IsActiveOnly()}
		}
		out[i] = st
	}
	return out
}

func (p *Pipeline) recordStatus(s Source, res Result, outcome string, at time.Time) {
	st := SourceStatus{
		Key:        s.Key,
		SystemName: s.SystemName(),
		ActiveOnly: s.IsActiveOnly(),
		LastPoll:   at,
		Since:      res.Since,
		Outcome:    outcome,
		Alerts:     len(res.Alerts),
	}
	if res.Err != nil {
		st.Error = res.Err.Error()
	}
	p.mu.Lock()
	p.status[s.Key] = st
	p.mu.Unlock()
}

// CheckReadiness returns nil once a poll cycle has been published, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a poll cycle yet")
	}
	return nil
}

// Run polls on every interval until the context is cancelled. The first
// cycle starts immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "sources", len(p.sources), "interval", p.opts.Interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce polls every source, publishes the merged alerts, and advances the
// checkpoint of each source that produced any. Publishing is retried with
// exponential backoff until it succeeds or ctx is done; checkpoints only move
// after a successful publish.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := p.clock.Now()
	results := p.Poll(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	var merged []domain.Alert
	for _, r := range results {
		merged = append(merged, r.Alerts...)
	}
	merged = domain.Normalize(merged, time.Time{})

	if err := p.publish(ctx, merged); err != nil {
		return err
	}
	p.advance(ctx, results)

	p.metrics.PollCycleDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Info("poll cycle complete", "alerts", len(merged), "duration", p.clock.Since(start))
	return nil
}

// Poll runs every source concurrently, each under its own timeout. A source
// that fails contributes no alerts; its error is reported in its Result.
// Results are in source order.
func (p *Pipeline) Poll(ctx context.Context) []Result {
	now := p.clock.Now()
	results := make([]Result, len(p.sources))

	var g errgroup.Group
	g.SetLimit(p.opts.MaxConcurrentSources)
	for i, s := range p.sources {
		g.Go(func() error {
			results[i] = p.pollSource(ctx, s, now)
			return nil // failures are isolated per source
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) pollSource(ctx context.Context, s Source, now time.Time) Result {
	res := Result{Key: s.Key, Since: p.since(ctx, s.Key, now)}
	if ctx.Err() != nil {
		res.Err = ctx.Err()
		return res
	}

	sctx := ctx
	if p.opts.SourceTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.opts.SourceTimeout)
		defer cancel()
	}

	start := p.clock.Now()
	batch, err := pollBatch(sctx, s.AlertSource, res.Since)
	p.metrics.SourcePollDuration.WithLabelValues(s.Key).Observe(p.clock.Since(start).Seconds())

	if err != nil {
		outcome := pollOutcome(ctx, sctx, err)
		p.metrics.SourcePolls.WithLabelValues(s.Key, outcome).Inc()
		if ctx.Err() == nil {
			p.logger.Warn("source poll failed", "source", s.Key, "outcome", outcome, "error", err)
		}
		res.Err = err
		p.recordStatus(s, res, outcome, start)
		return res
	}
	p.metrics.SourcePolls.WithLabelValues(s.Key, observability.OutcomeSuccess).Inc()
	if !batch.RetryFrom.IsZero() {
		res.RetryFrom = batch.RetryFrom
		p.logger.Info("entries deferred to next poll", "source", s.Key, "retry_from", batch.RetryFrom)
	}

	alerts := batch.Alerts
	res.Alerts = make([]domain.Alert, 0, len(alerts))
	for i := range alerts {
		if err := alerts[i].Validate(); err != nil {
			p.logger.Warn("invalid alert, skipping", "source", s.Key, "error", err)
			continue
		}
		p.metrics.AlertsEmitted.WithLabelValues(s.Key, string(alerts[i].Level)).Inc()
		res.Alerts = append(res.Alerts, alerts[i])
	}
	p.recordStatus(s, res, observability.OutcomeSuccess, start)
	p.logger.Debug("source polled", "source", s.Key, "since", res.Since, "alerts", len(res.Alerts))
	return res
}

func pollBatch(ctx context.Context, src source.AlertSource, since time.Time) (source.Batch, error) {
	if bs, ok := src.(source.BatchSource); ok {
		return bs.Batch(ctx, since)
	}
	alerts, err := src.Alerts(ctx, since)
	return source.Batch{Alerts: alerts}, err
}

// since is the checkpoint of key, or now minus the lookback when there is none.
func (p *Pipeline) since(ctx context.Context, key string, now time.Time) time.Time {
	t, ok, err := p.checkpoints.Since(ctx, key)
	if err != nil {
		p.logger.Warn("read checkpoint failed, using lookback", "source", key, "error", err)
	}
	if err != nil || !ok {
		return now.Add(-p.opts.Lookback)
	}
	return t
}

func pollOutcome(parent, sctx context.Context, err error) string {
	switch {
	case parent.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded):
		return observability.OutcomeTimeout
	case errors.Is(err, domain.ErrParse):
		return observability.OutcomeParseError
	case errors.Is(err, domain.ErrNetwork):
		return observability.OutcomeNetworkError
	default:
		return observability.OutcomeError
	}
}

func (p *Pipeline) publish(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	backoff := initialBackoff
	for {
		err := p.loader.LoadBatch(ctx, alerts)
		if err == nil {
			p.metrics.MessagesProduced.Add(float64(len(alerts)))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.metrics.PublishErrors.Inc()
		p.logger.Error("load batch failed", "error", err, "batch_size", len(alerts), "retry_in", backoff)

		if !sleepWithContext(ctx, p.clock, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// advance moves each source's checkpoint to its newest published alert, but
// never to or past an entry the source deferred.
func (p *Pipeline) advance(ctx context.Context, results []Result) {
	for _, r := range results {
		if len(r.Alerts) == 0 {
			continue
		}
		newest := r.Alerts[0].PublishedDate
		for _, a := range r.Alerts[1:] {
			if a.PublishedDate.After(newest) {
				newest = a.PublishedDate
			}
		}
		if !r.RetryFrom.IsZero() {
			limit := r.RetryFrom.Add(-time.Nanosecond)
			if !limit.After(r.Since) {
				continue
			}
			if newest.After(limit) {
				newest = limit
			}
		}
		if err := p.checkpoints.Advance(ctx, r.Key, newest); err != nil {
			p.logger.Warn("advance checkpoint failed", "source", r.Key, "error", err)
		}
	}
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
