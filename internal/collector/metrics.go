package collector

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/trafficlens/trafficlens/internal/collector"

// Metrics holds the OpenTelemetry instruments for collection runs.
type Metrics struct {
	fireDuration metric.Float64Histogram
	fireTotal    metric.Int64Counter
	runTotal     metric.Int64Counter
}

// NewMetrics creates scheduler instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	fireDuration, err := meter.Float64Histogram(
		"collector.fire.duration",
		metric.WithDescription("Duration of snapshot fires in seconds, sampling plus persistence"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fireTotal, err := meter.Int64Counter(
		"collector.fire.total",
		metric.WithDescription("Total number of snapshot fires"),
		metric.WithUnit("{fire}"),
	)
	if err != nil {
		return nil, err
	}

	runTotal, err := meter.Int64Counter(
		"collector.run.total",
		metric.WithDescription("Total number of finished collection runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fireDuration: fireDuration,
		fireTotal:    fireTotal,
		runTotal:     runTotal,
	}, nil
}

// RecordFire records one snapshot fire.
func (m *Metrics) RecordFire(ctx context.Context, areaID string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("area.id", areaID),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	m.fireDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.fireTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRunEnd records a finished run.
func (m *Metrics) RecordRunEnd(ctx context.Context, areaID string, outcome Outcome) {
	if m == nil {
		return
	}

	m.runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("area.id", areaID),
		attribute.String("run.outcome", string(outcome)),
	))
}
