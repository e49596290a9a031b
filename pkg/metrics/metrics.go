// Package metrics provides Prometheus metrics collection for the bot.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/daracheol/lingotutor/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "lingotutor"

// Turn metric counter indices.
const (
	TurnMetricTotal = iota
	TurnMetricSuccess
	TurnMetricFailed
	TurnMetricFilesAnalyzed
)

// Metrics owns a Prometheus registry with counters for conversation
// turns, HTTP requests against the ops server, and custom collectors.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPRequestsCounters     map[int]prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	// Guards HTTPRequestsCounters; status codes register lazily and
	// concurrent requests can race on the first occurrence of a code.
	httpCountersMu *sync.Mutex

	TurnCounters           map[int]prometheus.Counter
	ModelDurationHistogram prometheus.Histogram

	customMetrics []prometheus.Collector

	server *http.Server
	log    logger.Logger
}

// NewMetrics creates a Metrics instance with the selected collectors enabled.
func NewMetrics(httpCounters, turnCounters bool, l logger.Logger) Metrics {
	m := Metrics{
		reg:            prometheus.NewRegistry(),
		log:            l,
		httpCountersMu: &sync.Mutex{},
	}
	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter)
		m.HTTPRequestsCounters = make(map[int]prometheus.Counter)

		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		})
		m.reg.MustRegister(m.HTTPDurationHistogram)
	}
	if turnCounters {
		m.TurnCounters = getTurnCounters()
		for k := range m.TurnCounters {
			m.reg.MustRegister(m.TurnCounters[k])
		}

		m.ModelDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "model_call_duration_seconds",
			Help:      "Generative model call duration in seconds",
			Buckets:   []float64{0.5, 1.0, 3.0, 5.0, 10.0, 20.0, 30.0, 60.0},
		})
		m.reg.MustRegister(m.ModelDurationHistogram)
	}
	return m
}

func getTurnCounters() map[int]prometheus.Counter {
	m := make(map[int]prometheus.Counter)
	m[TurnMetricTotal] = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "total_turns_handled",
		Help:      "Total conversation turns handled",
	})
	m[TurnMetricSuccess] = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "total_turns_successful",
		Help:      "Total conversation turns handled successfully",
	})
	m[TurnMetricFailed] = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "total_turns_failed",
		Help:      "Total conversation turns that failed",
	})
	m[TurnMetricFilesAnalyzed] = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "total_files_analyzed",
		Help:      "Total uploaded files analyzed and stored",
	})
	return m
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.customMetrics = append(m.customMetrics, c)
	m.reg.MustRegister(c)
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts the metrics HTTP server on the specified port.
func (m *Metrics) Listen(port int) {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))
	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Error("Metrics listener failed", logger.ErrorField(err))
		}
	}()
}

// Shutdown stops the metrics HTTP server if it is running.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	m.log.Info("Stopping metrics listener")
	return m.server.Shutdown(ctx)
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	m.httpCountersMu.Lock()
	counter, ok := m.HTTPRequestsCounters[code]
	if !ok {
		counter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      fmt.Sprintf("total_%d_http_responses", code),
			Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
		})
		m.HTTPRequestsCounters[code] = counter
		m.reg.MustRegister(counter)
	}
	m.httpCountersMu.Unlock()
	counter.Inc()
}

// HTTPMiddleware returns a chi-compatible middleware tracking HTTP metrics.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
