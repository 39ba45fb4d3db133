package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the viewer's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Navigations        *prometheus.CounterVec
	BackendRequests    *prometheus.CounterVec
	BackendDurations   *prometheus.HistogramVec
	BackendConnected   prometheus.Gauge
	FootprintsRendered prometheus.Gauge
}

// NewCollector registers metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	navigations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satfusion_navigations_total",
		Help: "Navigation requests by outcome (landed, dropped, not_found, error).",
	}, []string{"outcome"}), "satfusion_navigations_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satfusion_backend_requests_total",
		Help: "Backend calls by operation and result.",
	}, []string{"operation", "result"}), "satfusion_backend_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satfusion_backend_request_duration_seconds",
		Help:    "Backend call latency in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"}), "satfusion_backend_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	connected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satfusion_backend_connected",
		Help: "1 when the last health check succeeded, 0 otherwise.",
	}), "satfusion_backend_connected")
	if err != nil {
		return nil, err
	}

	footprints, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satfusion_footprints_rendered",
		Help: "Number of footprints in the most recently published overlay.",
	}), "satfusion_footprints_rendered")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		Navigations:        navigations,
		BackendRequests:    requests,
		BackendDurations:   durations,
		BackendConnected:   connected,
		FootprintsRendered: footprints,
	}, nil
}

// ObserveBackend records one backend call.
func (c *Collector) ObserveBackend(operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.BackendRequests.WithLabelValues(operation, result).Inc()
	c.BackendDurations.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveNavigation counts a navigation outcome.
func (c *Collector) ObserveNavigation(outcome string) {
	if c == nil {
		return
	}
	c.Navigations.WithLabelValues(outcome).Inc()
}

// SetConnected mirrors the connectivity indicator.
func (c *Collector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.BackendConnected.Set(1)
	} else {
		c.BackendConnected.Set(0)
	}
}

// SetFootprints records the size of the latest overlay.
func (c *Collector) SetFootprints(n int) {
	if c == nil {
		return
	}
	c.FootprintsRendered.Set(float64(n))
}

// Handler exposes a /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
