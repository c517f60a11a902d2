package reconcile

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "ledgersync/reconcile"

type engineMetrics struct {
	candidates metric.Int64Counter
	rules      metric.Int64Counter
	fetchErrs  metric.Int64Counter
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter(instrumentationName)

	// Instrument creation only fails on invalid names; a no-op instrument is returned alongside the error.
	candidates, _ := meter.Int64Counter("ledgersync.candidates",
		metric.WithDescription("Completion candidates by outcome"))
	rules, _ := meter.Int64Counter("ledgersync.rules.checked",
		metric.WithDescription("Rules processed"))
	fetchErrs, _ := meter.Int64Counter("ledgersync.fetch.errors",
		metric.WithDescription("Canvas fetches abandoned after an error"))

	return &engineMetrics{candidates: candidates, rules: rules, fetchErrs: fetchErrs}
}

func (m *engineMetrics) outcome(ctx context.Context, variant Variant, outcome string) {
	m.candidates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("variant", string(variant)),
		attribute.String("outcome", outcome),
	))
}

func (m *engineMetrics) rule(ctx context.Context, variant Variant) {
	m.rules.Add(ctx, 1, metric.WithAttributes(attribute.String("variant", string(variant))))
}

func (m *engineMetrics) fetchError(ctx context.Context, variant Variant) {
	m.fetchErrs.Add(ctx, 1, metric.WithAttributes(attribute.String("variant", string(variant))))
}
