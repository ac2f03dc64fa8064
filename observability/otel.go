package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelObserver records events as OpenTelemetry metrics.
type OTelObserver struct {
	events metric.Int64Counter
	wait   metric.Float64Histogram
}

// NewOTelObserver creates the observer's instruments on meter. A nil meter
// selects the global "memstore" meter.
func NewOTelObserver(meter metric.Meter) (*OTelObserver, error) {
	if meter == nil {
		meter = otel.Meter("memstore")
	}

	events, err := meter.Int64Counter(
		"memstore_events_total",
		metric.WithDescription("Total observability events by type and source"),
	)
	if err != nil {
		return nil, err
	}

	wait, err := meter.Float64Histogram(
		"memstore_lock_wait_seconds",
		metric.WithDescription("Time spent waiting for a contended key lock"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &OTelObserver{events: events, wait: wait}, nil
}

func (o *OTelObserver) OnEvent(ctx context.Context, event Event) {
	o.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(event.Type)),
		attribute.String("source", event.Source),
		attribute.String("severity", event.Level.String()),
	))

	if d, ok := event.Data["wait"].(time.Duration); ok {
		o.wait.Record(ctx, d.Seconds())
	}
}
