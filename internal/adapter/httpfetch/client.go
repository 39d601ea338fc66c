// Package httpfetch is the transport used by alert sources: a rate-limited
// HTTP GET client and an LRU cache for bulletin documents.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
	"github.com/couchcryptid/hazard-alert-feed/internal/observability"
)

const (
	// DefaultMaxBodyBytes caps how much of a response is read.
	DefaultMaxBodyBytes = 8 << 20

	// maxTrackedHosts bounds the per-host limiter table. Bulletin links can
	// name arbitrary hosts.
	maxTrackedHosts = 64
)

// Client fetches feed and bulletin documents. It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
	limiters     *hostLimiters
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a fetch client. ratePerHost is the sustained request rate
// allowed against any one host; zero or less disables limiting.
func NewClient(timeout time.Duration, ratePerHost float64, userAgent string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent:    userAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
		limiters:     newHostLimiters(ratePerHost),
		metrics:      metrics,
		logger:       logger,
	}
}

// Fetch issues a GET for rawURL and returns the body. Every failure before a
// 2xx body is in hand is a *domain.NetworkError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, &domain.NetworkError{URL: rawURL, Err: fmt.Errorf("invalid url: %w", errOrInvalid(err))}
	}
	host := u.Host

	if err := c.limiters.wait(ctx, host); err != nil {
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.NetworkError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(host, "error").Inc()
		return nil, &domain.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.FetchRequests.WithLabelValues(host, "status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug("fetch rejected", "url", rawURL, "status", resp.StatusCode, "body", string(body))
		return nil, &domain.NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(host, "error").Inc()
		return nil, &domain.NetworkError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBodyBytes {
		c.metrics.FetchRequests.WithLabelValues(host, "error").Inc()
		return nil, &domain.NetworkError{URL: rawURL, Err: fmt.Errorf("%w: body exceeds %d bytes", domain.ErrParse, c.maxBodyBytes)}
	}

	c.metrics.FetchRequests.WithLabelValues(host, "success").Inc()
	return body, nil
}

func errOrInvalid(err error) error {
	if err != nil {
		return err
	}
	return errors.New("missing host")
}

// hostLimiters hands out one token bucket per host so concurrent bulletin
// fetches never hammer a single agency. Once the table is full, buckets that
// have refilled are evicted; a fresh bucket behaves the same.
type hostLimiters struct {
	limit rate.Limit
	mu    sync.Mutex
	byKey map[string]*rate.Limiter
}

func newHostLimiters(perSecond float64) *hostLimiters {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &hostLimiters{limit: limit, byKey: make(map[string]*rate.Limiter)}
}

func (h *hostLimiters) wait(ctx context.Context, host string) error {
	if h.limit == rate.Inf {
		return nil
	}
	h.mu.Lock()
	l, ok := h.byKey[host]
	if !ok {
		if len(h.byKey) >= maxTrackedHosts {
			h.evictIdle()
		}
		l = rate.NewLimiter(h.limit, 1)
		h.byKey[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}

// evictIdle drops every bucket that is full again. Callers hold h.mu.
func (h *hostLimiters) evictIdle() {
	for host, l := range h.byKey {
		if l.Tokens() >= 1 {
			delete(h.byKey, host)
		}
	}
}
