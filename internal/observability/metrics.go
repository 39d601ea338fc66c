package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_alerts"

// Poll outcomes recorded on SourcePolls.
const (
	OutcomeSuccess      = "success"
	OutcomeNetworkError = "network_error"
	OutcomeParseError   = "parse_error"
	OutcomeTimeout      = "timeout"
	OutcomeError        = "error"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the alert poller.
type Metrics struct {
	// Per-source polling.
	SourcePolls        *prometheus.CounterVec   // labels: source, outcome
	SourcePollDuration *prometheus.HistogramVec // labels: source
	AlertsEmitted      *prometheus.CounterVec   // labels: source, level

	// Whole poll cycles.
	PollCycleDuration prometheus.Histogram
	SourcesConfigured prometheus.Gauge
	PipelineRunning   prometheus.Gauge

	// Transport.
	FetchRequests *prometheus.CounterVec   // labels: host, outcome={success,error,status}
	FetchDuration *prometheus.HistogramVec // labels: host
	DocumentCache *prometheus.CounterVec   // labels: result={hit,miss}

	// Sink.
	MessagesProduced prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SourcePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_polls_total",
			Help:      "Source polls by source and outcome.",
		}, []string{"source", "outcome"}),
		SourcePollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_poll_duration_seconds",
			Help:      "Duration of one source poll including follow-up fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_emitted_total",
			Help:      "Normalized alerts emitted by source and level.",
		}, []string{"source", "level"}),
		PollCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of a complete poll across all sources.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SourcesConfigured: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources_configured",
			Help:      "Number of enabled alert sources.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the poller is active, 0 when shut down.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Outbound feed and bulletin requests by host and outcome.",
		}, []string{"host", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Outbound request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"host"}),
		DocumentCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_total",
			Help:      "Bulletin document cache lookups by result.",
		}, []string{"result"}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total alert messages written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish a batch of alerts.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SourcePolls,
		m.SourcePollDuration,
		m.AlertsEmitted,
		m.PollCycleDuration,
		m.SourcesConfigured,
		m.PipelineRunning,
		m.FetchRequests,
		m.FetchDuration,
		m.DocumentCache,
		m.MessagesProduced,
		m.PublishErrors,
	}
}
