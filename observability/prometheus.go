package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver counts events by type and source and records lock wait
// durations carried in the "wait" data field.
type PrometheusObserver struct {
	events *prometheus.CounterVec
	errors *prometheus.CounterVec
	wait   prometheus.Histogram
}

// NewPrometheusObserver registers the observer's collectors with reg. A nil
// reg selects prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusObserver{
		// Labels: type (event type), source (emitting operation)
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore",
			Name:      "events_total",
			Help:      "Total observability events by type and source",
		}, []string{"type", "source"}),

		// Labels: source
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memstore",
			Name:      "errors_total",
			Help:      "Total events at warning level or above by source",
		}, []string{"source"}),

		wait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memstore",
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a contended key lock",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (o *PrometheusObserver) OnEvent(_ context.Context, event Event) {
	o.events.WithLabelValues(string(event.Type), event.Source).Inc()

	if event.Level >= LevelWarning {
		o.errors.WithLabelValues(event.Source).Inc()
	}

	if d, ok := event.Data["wait"].(time.Duration); ok {
		o.wait.Observe(d.Seconds())
	}
}
