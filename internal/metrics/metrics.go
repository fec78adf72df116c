// Package metrics records dispatch activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "joi"

// Recorder implements watch.Observer on top of a Prometheus registry.
type Recorder struct {
	registry      *prometheus.Registry
	dispatches    *prometheus.CounterVec
	skips         *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Tasks started per watcher, baseline runs included.",
		}, []string{"watcher"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Change batches that did not match the watcher.",
		}, []string{"watcher"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Running tasks cancelled by a newer dispatch or shutdown.",
		}, []string{"watcher"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_failures_total",
			Help:      "Tasks whose action returned an error.",
		}, []string{"watcher"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of watcher tasks, cancelled ones included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"watcher"}),
	}

	r.registry.MustRegister(r.dispatches, r.skips, r.cancellations, r.failures, r.duration)

	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Dispatched counts a started task.
func (r *Recorder) Dispatched(watcher string, _ int) {
	r.dispatches.WithLabelValues(watcher).Inc()
}

// Skipped counts a batch that did not match.
func (r *Recorder) Skipped(watcher string) {
	r.skips.WithLabelValues(watcher).Inc()
}

// Cancelled counts a cancelled task.
func (r *Recorder) Cancelled(watcher string) {
	r.cancellations.WithLabelValues(watcher).Inc()
}

// Finished observes the task duration and counts failures.
func (r *Recorder) Finished(watcher string, elapsed time.Duration, failed bool) {
	r.duration.WithLabelValues(watcher).Observe(elapsed.Seconds())

	if failed {
		r.failures.WithLabelValues(watcher).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	return r.serve(ctx, ln, logger)
}

func (r *Recorder) serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics: %w", err)
	}

	return nil
}
