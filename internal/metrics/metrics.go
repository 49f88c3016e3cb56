// Package metrics exposes poll outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwulff/linkup-go/internal/render"
	"github.com/jwulff/linkup-go/internal/session"
)

const namespace = "linkup"

// Tick outcomes.
const (
	OutcomeReading = "reading"
	OutcomeAbsent  = "absent"
)

// Recorder owns a private registry so tests and multiple instances do not
// collide on the default one.
type Recorder struct {
	registry    *prometheus.Registry
	ticks       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	logins      prometheus.Counter
	glucose     prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Poll ticks by outcome.",
		}, []string{"outcome"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed ticks by stage and reason.",
		}, []string{"stage", "reason"}),
		logins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Successful logins.",
		}),
		glucose: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "glucose_mgdl",
			Help:      "Last glucose value in mg/dL.",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last tick that produced a reading.",
		}),
	}
}

// ObserveTick records the outcome of one tick.
func (r *Recorder) ObserveTick(result session.Result, display render.DisplayState, at time.Time) {
	if result.Renewed {
		r.logins.Inc()
	}
	if result.Err != nil {
		r.failures.WithLabelValues(string(result.Stage), result.Reason()).Inc()
	}
	if !display.Available() {
		r.ticks.WithLabelValues(OutcomeAbsent).Inc()
		return
	}
	r.ticks.WithLabelValues(OutcomeReading).Inc()
	r.glucose.Set(display.ValueMgdl)
	r.lastSuccess.Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
