package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/runlab/toolstats/reconcile"
)

// MetricsHandler translates reconciliation events into OpenTelemetry metrics.
// It records pass durations, pass outcomes, and cache mutation counts.
type MetricsHandler struct {
	passDuration  metric.Float64Histogram
	passRuns      metric.Int64Counter
	toolMutations metric.Int64Counter
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording reconciliation metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	passDur, err := meter.Float64Histogram("toolstats.pass.duration",
		metric.WithDescription("Duration of a reconciliation pass in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	passRuns, err := meter.Int64Counter("toolstats.pass.runs",
		metric.WithDescription("Number of reconciliation passes by outcome"),
	)
	if err != nil {
		return nil, err
	}

	mutations, err := meter.Int64Counter("toolstats.tools.mutations",
		metric.WithDescription("Number of cache mutations by operation"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		passDuration:  passDur,
		passRuns:      passRuns,
		toolMutations: mutations,
	}, nil
}

// Handle processes a reconciliation event and records the appropriate metrics.
// It implements reconcile.EventHandler semantics.
func (h *MetricsHandler) Handle(e reconcile.Event) {
	switch e.Kind {
	case reconcile.EventToolInserted:
		h.recordMutation("insert")
	case reconcile.EventToolDeactivated:
		h.recordMutation("deactivate")
	case reconcile.EventToolRefreshed:
		h.recordMutation("refresh")
	case reconcile.EventToolEmpty:
		h.recordMutation("empty")
	case reconcile.EventPassFinished:
		h.recordPass(e, "ok")
	case reconcile.EventPassFailed:
		h.recordPass(e, "failed")
	}
}

// recordMutation increments the mutation counter for one cache operation.
// Tool identity stays out of the attributes to keep cardinality bounded
// across large catalogs.
func (h *MetricsHandler) recordMutation(op string) {
	h.toolMutations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
	))
}

// recordPass increments the pass counter and records the pass duration.
func (h *MetricsHandler) recordPass(e reconcile.Event, status string) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("status", status),
	)
	h.passRuns.Add(ctx, 1, attrs)
	h.passDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}
