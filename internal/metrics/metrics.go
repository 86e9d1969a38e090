package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Backend metrics
	generationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleforge_generation_requests_total",
			Help: "Generation requests by outcome and error kind",
		},
		[]string{"status", "kind"}, // status: "success"/"error", kind: "" or transport/empty/protocol/malformed
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taleforge_generation_duration_seconds",
			Help:    "Generation request duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"model", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taleforge_rate_limiter_wait_duration_seconds",
			Help:    "Time spent waiting for the backend rate limiter",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
	)

	// Session metrics
	phaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleforge_phase_transitions_total",
			Help: "Session state machine transitions by target phase",
		},
		[]string{"phase"},
	)

	scenesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taleforge_scenes_total",
			Help: "Scenes successfully generated",
		},
	)

	// Persistence metrics
	snapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taleforge_snapshot_writes_total",
			Help: "Snapshot save attempts by status",
		},
		[]string{"status"},
	)

	// Reveal metrics
	revealSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taleforge_reveal_skips_total",
			Help: "Reveals finished early by the player",
		},
	)
)

// Collector provides convenience methods for recording metrics.
// A nil *Collector records nothing.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordGeneration records the outcome of one backend request
func (c *Collector) RecordGeneration(model string, duration time.Duration, kind string) {
	if c == nil {
		return
	}
	s := status(kind == "")
	generationRequests.WithLabelValues(s, kind).Inc()
	generationDuration.WithLabelValues(model, s).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(duration time.Duration) {
	if c == nil {
		return
	}
	rateLimiterWaitDuration.Observe(duration.Seconds())
}

// RecordTransition counts a transition into phase
func (c *Collector) RecordTransition(phase string) {
	if c == nil {
		return
	}
	phaseTransitions.WithLabelValues(phase).Inc()
}

// IncrementScenes counts a successfully generated scene
func (c *Collector) IncrementScenes() {
	if c == nil {
		return
	}
	scenesCompleted.Inc()
}

// RecordSnapshotWrite counts a snapshot save attempt
func (c *Collector) RecordSnapshotWrite(success bool) {
	if c == nil {
		return
	}
	snapshotWrites.WithLabelValues(status(success)).Inc()
}

// IncrementRevealSkips counts a skipped reveal
func (c *Collector) IncrementRevealSkips() {
	if c == nil {
		return
	}
	revealSkips.Inc()
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if c != nil && c.logger != nil {
		c.logger.Info("Metrics endpoint listening", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
