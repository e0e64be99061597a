// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultNamespace prefixes every exported metric
	DefaultNamespace = "patchextract"
	// DefaultSubsystem groups the engine metrics
	DefaultSubsystem = "engine"
)

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace            string            `json:"namespace"`
	Subsystem            string            `json:"subsystem"`
	Labels               map[string]string `json:"labels"`
	EnableGoMetrics      bool              `json:"enable_go_metrics"`
	EnableProcessMetrics bool              `json:"enable_process_metrics"`
}

// ExtractionMetrics exports engine observations as Prometheus metrics. It
// implements scraper.MetricsObserver and owns its registry, so several
// instances can coexist in one process.
type ExtractionMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	selectorTotal     *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	configReloads     *prometheus.CounterVec
	lastExtraction    prometheus.Gauge

	// carries the const labels for every collector, custom ones included
	registerer prometheus.Registerer

	namespace string
	subsystem string
}

// NewExtractionMetrics creates the exporter and registers its collectors
func NewExtractionMetrics(config MetricsConfig) *ExtractionMetrics {
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	if config.Subsystem == "" {
		config.Subsystem = DefaultSubsystem
	}

	registry := prometheus.NewRegistry()
	em := &ExtractionMetrics{
		registry:   registry,
		registerer: prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry),
		namespace:  config.Namespace,
		subsystem:  config.Subsystem,
	}
	em.initializeMetrics(em.registerer)

	if config.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if config.EnableProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return em
}

func (em *ExtractionMetrics) initializeMetrics(reg prometheus.Registerer) {
	em.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: em.namespace,
			Subsystem: em.subsystem,
			Name:      "operations_total",
			Help:      "Total number of engine operations by outcome",
		},
		[]string{"operation", "status"},
	)

	em.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: em.namespace,
			Subsystem: em.subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	em.selectorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: em.namespace,
			Subsystem: em.subsystem,
			Name:      "selector_evaluations_total",
			Help:      "Total number of selector evaluations by outcome",
		},
		[]string{"selector", "status"},
	)

	em.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: em.namespace,
			Subsystem: em.subsystem,
			Name:      "cache_lookups_total",
			Help:      "Total number of result cache lookups",
		},
		[]string{"operation", "result"},
	)

	em.configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: em.namespace,
			Subsystem: em.subsystem,
			Name:      "config_reloads_total",
			Help:      "Total number of configuration reloads by outcome",
		},
		[]string{"status"},
	)

	em.lastExtraction = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: em.namespace,
			Subsystem: em.subsystem,
			Name:      "last_extraction_timestamp_seconds",
			Help:      "Unix time of the last completed extraction run",
		},
	)

	reg.MustRegister(
		em.operationsTotal,
		em.operationDuration,
		em.selectorTotal,
		em.cacheLookups,
		em.configReloads,
		em.lastExtraction,
	)
}

// ObserveOperation records one completed engine operation
func (em *ExtractionMetrics) ObserveOperation(operation string, success bool, duration time.Duration) {
	em.operationsTotal.WithLabelValues(operation, status(success)).Inc()
	em.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveSelector records one selector evaluation
func (em *ExtractionMetrics) ObserveSelector(selector string, success bool) {
	em.selectorTotal.WithLabelValues(selector, status(success)).Inc()
}

// ObserveCache records one cache lookup
func (em *ExtractionMetrics) ObserveCache(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	em.cacheLookups.WithLabelValues(operation, result).Inc()
}

// RecordConfigReload counts a configuration reload attempt
func (em *ExtractionMetrics) RecordConfigReload(success bool) {
	em.configReloads.WithLabelValues(status(success)).Inc()
}

// MarkExtraction stamps the completion time of an extraction run
func (em *ExtractionMetrics) MarkExtraction(at time.Time) {
	em.lastExtraction.Set(float64(at.Unix()))
}

// RegisterCustomCounter adds a counter under the exporter's namespace and
// const labels. Registering a name twice is an error.
func (em *ExtractionMetrics) RegisterCustomCounter(name, help string, labels []string) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: em.namespace,
			Subsystem: em.subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
	if err := em.registerer.Register(counter); err != nil {
		return nil, err
	}
	return counter, nil
}

// Registry exposes the private registry, mostly for tests
func (em *ExtractionMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// Handler returns an HTTP handler serving the registry in the exposition format
func (em *ExtractionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(em.registry, promhttp.HandlerOpts{Registry: em.registry})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
