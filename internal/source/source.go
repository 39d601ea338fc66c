// Package source turns agency feeds into normalized alerts.
//
// Every source follows one template: fetch the endpoint, parse it, project each
// item into a draft alert with the selectors of a [Specification], run the
// source's own post-processing, and finish with [domain.Normalize]. Variants
// differ only in what happens between projection and normalization.
package source

import (
	"context"
	"time"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
)

// Fetcher retrieves the body at a URL. Implementations must be safe for
// concurrent use and fail with an error matching domain.ErrNetwork on timeouts,
// connection failures, and non-2xx responses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// AlertSource is the only surface the rest of the service depends on.
type AlertSource interface {
	// Alerts returns the source's alerts published strictly after since,
	// newest first, one per unique id.
	Alerts(ctx context.Context, since time.Time) ([]domain.Alert, error)
	SystemName() string
	// IsActiveOnly reports whether cancelled alerts are emitted as already
	// expired instead of being dropped.
	IsActiveOnly() bool
}

// ProcessFunc is a source's list-to-list post-processing hook. It maps agency
// vocabulary onto alert levels and drops what the source does not support.
type ProcessFunc func([]domain.Alert) []domain.Alert

// Batch is the result of one poll. RetryFrom is the earliest published date
// among entries dropped for this poll only; the next poll must start strictly
// before it. It is zero when nothing was deferred.
type Batch struct {
	Alerts    []domain.Alert
	RetryFrom time.Time
}

// BatchSource is implemented by sources that can defer entries to a later poll.
type BatchSource interface {
	AlertSource
	Batch(ctx context.Context, since time.Time) (Batch, error)
}
