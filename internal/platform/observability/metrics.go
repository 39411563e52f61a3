package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BreakdownMetrics records breakdown calculations on the global meter provider.
type BreakdownMetrics struct {
	calculations metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewBreakdownMetrics registers the breakdown instruments on meter, or on the global
// meter provider when meter is nil.
func NewBreakdownMetrics(meter metric.Meter) (*BreakdownMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentation)
	}
	calculations, err := meter.Int64Counter("breakdown.calculations",
		metric.WithDescription("Number of financial breakdowns served"),
		metric.WithUnit("{calculation}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("breakdown.duration",
		metric.WithDescription("Time spent producing a financial breakdown"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &BreakdownMetrics{calculations: calculations, duration: duration}, nil
}

// RecordCalculation counts one calculation. A nil receiver is a no-op.
func (m *BreakdownMetrics) RecordCalculation(ctx context.Context, cacheHit bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("cache_hit", cacheHit))
	m.calculations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}
