package snapshot

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/trafficlens/trafficlens/internal/snapshot"

// SamplerMetrics holds the OpenTelemetry instruments for route sampling.
type SamplerMetrics struct {
	routeDuration metric.Float64Histogram
	routeTotal    metric.Int64Counter
	snapshotTotal metric.Int64Counter
}

// NewSamplerMetrics creates sampler instruments on the global meter.
func NewSamplerMetrics() (*SamplerMetrics, error) {
	meter := otel.Meter(meterName)

	routeDuration, err := meter.Float64Histogram(
		"sampler.route.duration",
		metric.WithDescription("Duration of single route estimates in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	routeTotal, err := meter.Int64Counter(
		"sampler.route.total",
		metric.WithDescription("Total number of route estimates"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	snapshotTotal, err := meter.Int64Counter(
		"sampler.snapshot.total",
		metric.WithDescription("Total number of snapshots assembled"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return nil, err
	}

	return &SamplerMetrics{
		routeDuration: routeDuration,
		routeTotal:    routeTotal,
		snapshotTotal: snapshotTotal,
	}, nil
}

// RecordRoute records one route estimate.
func (m *SamplerMetrics) RecordRoute(ctx context.Context, duration time.Duration, available bool, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("route.available", available),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	m.routeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.routeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSnapshot records one assembled snapshot.
func (m *SamplerMetrics) RecordSnapshot(ctx context.Context, areaID string, available, routes int) {
	if m == nil {
		return
	}

	m.snapshotTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("area.id", areaID),
		attribute.Bool("snapshot.available", available > 0),
		attribute.Int("snapshot.routes", routes),
	))
}
