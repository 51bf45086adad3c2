// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the context exchange server.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the server metrics.
type MetricsConfig struct {
	// Namespace is the Prometheus namespace (default: mcp).
	Namespace string

	// Subsystem is the Prometheus subsystem (default: server).
	Subsystem string

	// HistogramBuckets overrides the exchange duration buckets.
	HistogramBuckets []float64

	// ConstLabels are added to all metrics.
	ConstLabels prometheus.Labels
}

// ServerMetrics tracks connection and exchange activity.
type ServerMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRefused  prometheus.Counter
	activeConnections   prometheus.Gauge
	exchangesTotal      *prometheus.CounterVec
	exchangeDuration    prometheus.Histogram
	errorsTotal         *prometheus.CounterVec
	bytesRead           prometheus.Counter
	bytesWritten        prometheus.Counter
}

// NewServerMetrics creates and registers the server metrics. A nil registerer
// uses the default Prometheus registry.
func NewServerMetrics(reg prometheus.Registerer, config MetricsConfig) (*ServerMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "mcp"
	}
	if config.Subsystem == "" {
		config.Subsystem = "server"
	}
	buckets := config.HistogramBuckets
	if buckets == nil {
		buckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	}

	m := &ServerMetrics{
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_accepted_total",
			Help:        "Connections accepted by the listener.",
			ConstLabels: config.ConstLabels,
		}),
		connectionsRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_refused_total",
			Help:        "Connections closed immediately because the concurrency cap was reached.",
			ConstLabels: config.ConstLabels,
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_connections",
			Help:        "Connections currently being handled.",
			ConstLabels: config.ConstLabels,
		}),
		exchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "exchanges_total",
			Help:        "Completed request/response exchanges by status.",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),
		exchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "exchange_duration_seconds",
			Help:        "Duration of one exchange from accept to close.",
			Buckets:     buckets,
			ConstLabels: config.ConstLabels,
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Errors observed while handling connections, by category.",
			ConstLabels: config.ConstLabels,
		}, []string{"category"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_read_total",
			Help:        "Frame payload bytes read from clients.",
			ConstLabels: config.ConstLabels,
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_written_total",
			Help:        "Frame payload bytes written to clients.",
			ConstLabels: config.ConstLabels,
		}),
	}

	collectors := []prometheus.Collector{
		m.connectionsAccepted, m.connectionsRefused, m.activeConnections,
		m.exchangesTotal, m.exchangeDuration, m.errorsTotal,
		m.bytesRead, m.bytesWritten,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// ConnectionAccepted records an accepted connection.
func (m *ServerMetrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
	m.activeConnections.Inc()
}

// ConnectionRefused records a connection refused by the concurrency cap.
func (m *ServerMetrics) ConnectionRefused() {
	if m == nil {
		return
	}
	m.connectionsRefused.Inc()
}

// ConnectionClosed records the end of a connection's lifetime.
func (m *ServerMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// ExchangeCompleted records one full exchange and its outcome.
func (m *ServerMetrics) ExchangeCompleted(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.exchangesTotal.WithLabelValues(status).Inc()
	m.exchangeDuration.Observe(duration.Seconds())
}

// ErrorObserved records an error by taxonomy category.
func (m *ServerMetrics) ErrorObserved(category string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(category).Inc()
}

// BytesRead records frame payload bytes received.
func (m *ServerMetrics) BytesRead(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(n))
}

// BytesWritten records frame payload bytes sent.
func (m *ServerMetrics) BytesWritten(n int) {
	if m == nil {
		return
	}
	m.bytesWritten.Add(float64(n))
}

// ServeMetrics exposes a Prometheus scrape endpoint on addr until ctx is
// cancelled. It is a convenience for the glue binaries; the protocol core
// never starts it on its own.
func ServeMetrics(ctx context.Context, addr, path string, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
