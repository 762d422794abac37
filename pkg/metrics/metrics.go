// Package metrics exposes Prometheus instrumentation for the buffer pool and
// the physical operators. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagedb"

// Metrics groups every collector registered by pagedb.
type Metrics struct {
	registry *prometheus.Registry

	PoolHits     prometheus.Counter
	PoolMisses   prometheus.Counter
	PageReads    prometheus.Counter
	PageWrites   prometheus.Counter
	PinnedFrames prometheus.Gauge

	OperatorRuns     *prometheus.CounterVec
	OperatorRecords  *prometheus.CounterVec
	OperatorDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PoolHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "hits_total",
			Help: "Pins served from a resident frame or the clean-page cache.",
		}),
		PoolMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "misses_total",
			Help: "Pins that had to read the page from disk.",
		}),
		PageReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "page_reads_total",
			Help: "Pages read from table files.",
		}),
		PageWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "page_writes_total",
			Help: "Dirty pages written back to table files.",
		}),
		PinnedFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "pinned_frames",
			Help: "Frames currently pinned.",
		}),
		OperatorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "operator", Name: "runs_total",
			Help: "Operator runs by outcome.",
		}, []string{"operator", "outcome"}),
		OperatorRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "operator", Name: "records_total",
			Help: "Records seen by operators, by kind (input, rejected, output, groups).",
		}, []string{"operator", "kind"}),
		OperatorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "operator", Name: "duration_seconds",
			Help:    "Wall time of operator runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"operator"}),
	}

	m.registry.MustRegister(
		m.PoolHits, m.PoolMisses, m.PageReads, m.PageWrites, m.PinnedFrames,
		m.OperatorRuns, m.OperatorRecords, m.OperatorDuration,
	)
	return m
}

// Registry returns the registry holding pagedb's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hit counts a pin served without disk I/O.
func (m *Metrics) Hit() {
	if m != nil {
		m.PoolHits.Inc()
	}
}

// Miss counts a pin that read from disk.
func (m *Metrics) Miss() {
	if m != nil {
		m.PoolMisses.Inc()
		m.PageReads.Inc()
	}
}

// Wrote counts a page write-back.
func (m *Metrics) Wrote() {
	if m != nil {
		m.PageWrites.Inc()
	}
}

// SetPinned records the current number of pinned frames.
func (m *Metrics) SetPinned(n int) {
	if m != nil {
		m.PinnedFrames.Set(float64(n))
	}
}

// Records adds n records of the given kind for operator.
func (m *Metrics) Records(operator, kind string, n int) {
	if m != nil && n > 0 {
		m.OperatorRecords.WithLabelValues(operator, kind).Add(float64(n))
	}
}

// ObserveRun records the outcome and the duration of one operator run.
func (m *Metrics) ObserveRun(operator string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OperatorRuns.WithLabelValues(operator, outcome).Inc()
	m.OperatorDuration.WithLabelValues(operator).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
