// Package metrics exposes the Prometheus instruments of the discovery and
// registration pipeline. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the instruments.
type Config struct {
	// Namespace is the metrics namespace (default: "girouette").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for reconcile duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the instruments.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "girouette",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the pipeline instruments.
type Metrics struct {
	modulesLoaded      *prometheus.CounterVec
	moduleFailures     prometheus.Counter
	controllerFailures *prometheus.CounterVec
	reconciliations    prometheus.Counter
	reconcileDuration  prometheus.Histogram
	routesRegistered   prometheus.Gauge
	watchEvents        *prometheus.CounterVec
}

// New registers the instruments with the configured registry. Registering
// twice on the same registry panics, as promauto does.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		modulesLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "modules_loaded_total",
			Help:        "Controller modules loaded, by lifecycle event",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		moduleFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "module_load_failures_total",
			Help:        "Controller files that failed to import",
			ConstLabels: config.ConstLabels,
		}),

		controllerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "controller_failures_total",
			Help:        "Controllers skipped, by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		reconciliations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconciliations_total",
			Help:        "Full route set commits to the router",
			ConstLabels: config.ConstLabels,
		}),

		reconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconcile_duration_seconds",
			Help:        "Time spent pushing and committing the route set",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		routesRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "routes_registered",
			Help:        "Descriptors in the last committed route set",
			ConstLabels: config.ConstLabels,
		}),

		watchEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "watch_events_total",
			Help:        "File change notifications, by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// ModuleLoaded counts a successful load emitting event.
func (m *Metrics) ModuleLoaded(event string) {
	if m == nil {
		return
	}
	m.modulesLoaded.WithLabelValues(event).Inc()
}

// ModuleFailed counts a file that failed to import.
func (m *Metrics) ModuleFailed() {
	if m == nil {
		return
	}
	m.moduleFailures.Inc()
}

// ControllerFailed counts a controller skipped for an error of errType.
func (m *Metrics) ControllerFailed(errType string) {
	if m == nil {
		return
	}
	m.controllerFailures.WithLabelValues(errType).Inc()
}

// Reconciled records one commit of routes descriptors that took d.
func (m *Metrics) Reconciled(routes int, d time.Duration) {
	if m == nil {
		return
	}
	m.reconciliations.Inc()
	m.reconcileDuration.Observe(d.Seconds())
	m.routesRegistered.Set(float64(routes))
}

// WatchEvent counts a file change notification.
func (m *Metrics) WatchEvent(eventType string) {
	if m == nil {
		return
	}
	m.watchEvents.WithLabelValues(eventType).Inc()
}
