// Package otel provides OpenTelemetry integration for reconciliation events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/runlab/toolstats/reconcile"
)

// TracingHandler translates reconciliation events into OpenTelemetry spans.
// Each pass becomes a root span; tool-level events are recorded as span
// events on it.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	passSpans map[string]trace.Span // passID -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from reconciliation events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		passSpans: make(map[string]trace.Span),
	}
}

// Handle processes a reconciliation event and creates, annotates, or ends
// the pass span accordingly. It implements reconcile.EventHandler semantics.
func (h *TracingHandler) Handle(e reconcile.Event) {
	switch e.Kind {
	case reconcile.EventPassStarted:
		h.handlePassStarted(e)
	case reconcile.EventToolInserted, reconcile.EventToolDeactivated,
		reconcile.EventToolRefreshed, reconcile.EventToolEmpty:
		h.handleToolEvent(e)
	case reconcile.EventPassFinished:
		h.handlePassFinished(e)
	case reconcile.EventPassFailed:
		h.handlePassFailed(e)
	}
}

// handlePassStarted creates a root span for the pass.
func (h *TracingHandler) handlePassStarted(e reconcile.Event) {
	_, span := h.tracer.Start(context.Background(), "pass:"+e.PassID,
		trace.WithAttributes(
			attribute.String("toolstats.pass_id", e.PassID),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.passSpans[e.PassID] = span
	h.mu.Unlock()
}

// handleToolEvent adds a span event for one cache mutation.
func (h *TracingHandler) handleToolEvent(e reconcile.Event) {
	h.mu.RLock()
	span, ok := h.passSpans[e.PassID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("toolstats.event_kind", string(e.Kind)),
	}
	if e.Tool != nil {
		attrs = append(attrs, attribute.String("toolstats.tool", e.Tool.Key()))
	}

	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

// handlePassFinished ends the pass span with success status and the final
// mutation counts.
func (h *TracingHandler) handlePassFinished(e reconcile.Event) {
	h.mu.Lock()
	span, ok := h.passSpans[e.PassID]
	if ok {
		delete(h.passSpans, e.PassID)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.String("toolstats.duration", e.Elapsed.String()),
			attribute.Int("toolstats.inserted", e.Counts.Inserted),
			attribute.Int("toolstats.deactivated", e.Counts.Deactivated),
			attribute.Int("toolstats.refreshed", e.Counts.Refreshed),
			attribute.Int("toolstats.empty", e.Counts.Empty),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handlePassFailed ends the pass span with error status.
func (h *TracingHandler) handlePassFailed(e reconcile.Event) {
	h.mu.Lock()
	span, ok := h.passSpans[e.PassID]
	if ok {
		delete(h.passSpans, e.PassID)
	}
	h.mu.Unlock()

	if ok {
		errMsg := "pass failed"
		if e.Err != nil {
			errMsg = e.Err.Error()
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(
			spanError(errMsg),
			trace.WithTimestamp(e.Time),
		)
		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActivePassSpanContext returns the SpanContext for the active pass span
// identified by passID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActivePassSpanContext(passID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.passSpans[passID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
