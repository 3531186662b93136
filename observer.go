package typewriter

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives animation telemetry.
type Observer interface {
	SessionStarted()
	SessionCompleted(duration time.Duration)
	SessionCancelled()
	CharacterRevealed()
	MutationFailed(phase Phase)
}

// PrometheusObserver exports animation metrics to Prometheus.
type PrometheusObserver struct {
	sessions       *prometheus.CounterVec
	active         prometheus.Gauge
	duration       prometheus.Histogram
	characters     prometheus.Counter
	mutationErrors *prometheus.CounterVec
}

// NewPrometheusObserver registers the typewriter metrics on reg, or on the
// default registerer when reg is nil.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "typewriter"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Typing sessions by outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions started and not yet completed or cancelled.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Time from Type until the last character was revealed.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		characters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "characters_revealed_total",
			Help:      "Characters inserted during reveal phases.",
		}),
		mutationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_errors_total",
			Help:      "Container operations that failed during a step.",
		}, []string{"phase"}),
	}

	for _, c := range []prometheus.Collector{o.sessions, o.active, o.duration, o.characters, o.mutationErrors} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register typewriter metric: %w", err)
		}
	}
	return o, nil
}

func (o *PrometheusObserver) SessionStarted() {
	o.sessions.WithLabelValues("started").Inc()
	o.active.Inc()
}

func (o *PrometheusObserver) SessionCompleted(duration time.Duration) {
	o.sessions.WithLabelValues("completed").Inc()
	o.active.Dec()
	o.duration.Observe(duration.Seconds())
}

func (o *PrometheusObserver) SessionCancelled() {
	o.sessions.WithLabelValues("cancelled").Inc()
	o.active.Dec()
}

func (o *PrometheusObserver) CharacterRevealed() {
	o.characters.Inc()
}

func (o *PrometheusObserver) MutationFailed(phase Phase) {
	o.mutationErrors.WithLabelValues(string(phase)).Inc()
}

type nopObserver struct{}

func (nopObserver) SessionStarted() {}

func (nopObserver) SessionCompleted(time.Duration) {}

func (nopObserver) SessionCancelled() {}

func (nopObserver) CharacterRevealed() {}

func (nopObserver) MutationFailed(Phase) {}
