package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "glint"

// Metrics holds the toolkit's Prometheus collectors.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry prometheus.Gatherer

	flushes       prometheus.Counter
	flushedPixels prometheus.Counter
	flushErrors   prometheus.Counter
	touchEvents   *prometheus.CounterVec
	handlerFaults *prometheus.CounterVec
	busDeliveries prometheus.Counter
	busFaults     prometheus.Counter
	contexts      prometheus.Gauge
	loads         *prometheus.CounterVec
	loadDuration  prometheus.Histogram
	animations    prometheus.Gauge
	overlays      prometheus.Counter
}

// NewMetrics registers collectors with reg. A nil reg gets a private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		flushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Regions pushed to the display device.",
		}),
		flushedPixels: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_pixels_total",
			Help:      "Pixels pushed to the display device.",
		}),
		flushErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_errors_total",
			Help:      "Device flushes that returned an error.",
		}),
		touchEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "touch_events_total",
			Help:      "Touch events delivered to widgets, by kind.",
		}, []string{"kind"}),
		handlerFaults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_faults_total",
			Help:      "Recovered panics in event handlers, by site.",
		}, []string{"where"}),
		busDeliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_deliveries_total",
			Help:      "Messages delivered to bus clients.",
		}),
		busFaults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_faults_total",
			Help:      "Bus client handlers that failed.",
		}),
		contexts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_contexts_active",
			Help:      "Application contexts currently loaded.",
		}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_loads_total",
			Help:      "Application load attempts, by result.",
		}, []string{"result"}),
		loadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "app_load_seconds",
			Help:      "Time spent loading and starting applications.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		animations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scroll_animations_active",
			Help:      "Inertial scroll animations in flight.",
		}),
		overlays: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlays_shown_total",
			Help:      "Fading overlays shown.",
		}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns process-wide metrics on a registry that also carries the
// Go runtime and process collectors.
func Default() *Metrics {
	defaultOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		defaultMetrics = NewMetrics(reg)
	})
	return defaultMetrics
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

func (m *Metrics) Flush(pixels int) {
	if m == nil {
		return
	}
	m.flushes.Inc()
	m.flushedPixels.Add(float64(pixels))
}

func (m *Metrics) FlushError() {
	if m == nil {
		return
	}
	m.flushErrors.Inc()
}

// TouchEvent counts a delivered touch event of the given kind (tap, hold, ...).
func (m *Metrics) TouchEvent(kind string) {
	if m == nil {
		return
	}
	m.touchEvents.WithLabelValues(kind).Inc()
}

// HandlerFault counts a recovered handler panic.
func (m *Metrics) HandlerFault(where string) {
	if m == nil {
		return
	}
	m.handlerFaults.WithLabelValues(where).Inc()
}

func (m *Metrics) BusDelivered() {
	if m == nil {
		return
	}
	m.busDeliveries.Inc()
}

func (m *Metrics) BusFault() {
	if m == nil {
		return
	}
	m.busFaults.Inc()
}

// SetContexts records the number of live application contexts.
func (m *Metrics) SetContexts(n int) {
	if m == nil {
		return
	}
	m.contexts.Set(float64(n))
}

// AppLoad records a load attempt outcome and its duration.
func (m *Metrics) AppLoad(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.loads.WithLabelValues(result).Inc()
	m.loadDuration.Observe(d.Seconds())
}

func (m *Metrics) AnimationStarted() {
	if m == nil {
		return
	}
	m.animations.Inc()
}

func (m *Metrics) AnimationStopped() {
	if m == nil {
		return
	}
	m.animations.Dec()
}

func (m *Metrics) OverlayShown() {
	if m == nil {
		return
	}
	m.overlays.Inc()
}
