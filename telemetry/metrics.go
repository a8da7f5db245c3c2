// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	RetrievalsStarted   prometheus.Counter
	RetrievalsSucceeded prometheus.Counter
	RetrievalsFailed    prometheus.Counter
	CaptionFetches      prometheus.Counter
	ScrapeFallbacks     prometheus.Counter
	TranscribeFallbacks prometheus.Counter
	UpstreamRetries     prometheus.Counter

	// Histograms (seconds)
	RetrievalDuration    prometheus.Observer
	AnalysisDuration     prometheus.Observer
	UpstreamCallDuration prometheus.Observer

	// Gauges
	LimiterWaitingGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RetrievalsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "persona_retrievals_started_total", Help: "Number of transcript retrievals started"})
		RetrievalsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "persona_retrievals_succeeded_total", Help: "Number of transcript retrievals succeeded"})
		RetrievalsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "persona_retrievals_failed_total", Help: "Number of transcript retrievals failed"})
		CaptionFetches = promauto.NewCounter(prometheus.CounterOpts{Name: "persona_caption_fetches_total", Help: "Number of direct caption fetch strategy runs"})
		ScrapeFallbacks = promauto.NewCounter(prometheus.CounterOpts{Name: "persona_scrape_fallbacks_total", Help: "Number of watch-page scrape fallback runs"})
		TranscribeFallbacks = promauto.NewCounter(prometheus.CounterOpts{Name: "persona_transcribe_fallbacks_total", Help: "Number of speech-to-text fallback runs"})
		UpstreamRetries = promauto.NewCounter(prometheus.CounterOpts{Name: "persona_upstream_retries_total", Help: "Number of upstream call retry attempts"})
		RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "persona_retrieval_duration_seconds", Help: "Transcript retrieval duration seconds", Buckets: prometheus.DefBuckets})
		AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "persona_analysis_duration_seconds", Help: "Heuristic analysis duration seconds", Buckets: prometheus.DefBuckets})
		UpstreamCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "persona_upstream_call_duration_seconds", Help: "Single upstream call duration seconds", Buckets: prometheus.DefBuckets})
		LimiterWaitingGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "persona_limiter_waiting", Help: "Number of callers queued behind the upstream limiter"})
	})
}

// SetLimiterWaiting records how many callers are queued behind the upstream limiter.
func SetLimiterWaiting(n int) {
	if LimiterWaitingGauge != nil {
		LimiterWaitingGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
