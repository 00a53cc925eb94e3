package otel_test

import (
	"errors"
	"testing"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/runlab/toolstats/core"
	statsotel "github.com/runlab/toolstats/otel"
	"github.com/runlab/toolstats/reconcile"
)

// newTestTracer returns a tracer backed by an in-memory span exporter.
func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

// mustStats builds a tool record for event payloads.
func mustStats(t *testing.T, id, version string) *core.ToolStats {
	t.Helper()
	tool, err := core.NewToolIdentity(id, version)
	if err != nil {
		t.Fatalf("NewToolIdentity(%q, %q): %v", id, version, err)
	}
	stats := core.NewToolStats(tool)
	return &stats
}

func TestTracingHandler_PassStartedCreatesRootSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := statsotel.NewTracingHandler(tracer)

	now := time.Now()

	h.Handle(reconcile.Event{
		Kind:   reconcile.EventPassStarted,
		PassID: "pass-1",
		Time:   now,
	})

	sc := h.ActivePassSpanContext("pass-1")
	if !sc.IsValid() {
		t.Fatal("expected valid pass span context after pass.started")
	}

	h.Handle(reconcile.Event{
		Kind:    reconcile.EventPassFinished,
		PassID:  "pass-1",
		Time:    now.Add(100 * time.Millisecond),
		Elapsed: 100 * time.Millisecond,
		Counts:  reconcile.Counts{Inserted: 2, Deactivated: 1},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	passSpan := spans[0]
	if passSpan.Name != "pass:pass-1" {
		t.Errorf("expected span name 'pass:pass-1', got %q", passSpan.Name)
	}
	if passSpan.Status.Code != otelcodes.Ok {
		t.Errorf("expected Ok status, got %v", passSpan.Status.Code)
	}

	idFound := false
	insertedFound := false
	for _, attr := range passSpan.Attributes {
		if string(attr.Key) == "toolstats.pass_id" && attr.Value.AsString() == "pass-1" {
			idFound = true
		}
		if string(attr.Key) == "toolstats.inserted" && attr.Value.AsInt64() == 2 {
			insertedFound = true
		}
	}
	if !idFound {
		t.Error("expected toolstats.pass_id attribute on pass span")
	}
	if !insertedFound {
		t.Error("expected toolstats.inserted attribute on pass span")
	}
}

func TestTracingHandler_ToolEventsRecordedOnPassSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := statsotel.NewTracingHandler(tracer)

	now := time.Now()

	h.Handle(reconcile.Event{
		Kind:   reconcile.EventPassStarted,
		PassID: "pass-1",
		Time:   now,
	})
	h.Handle(reconcile.Event{
		Kind:   reconcile.EventToolInserted,
		PassID: "pass-1",
		Tool:   mustStats(t, "bwa", "0.7.17"),
		Time:   now.Add(10 * time.Millisecond),
	})
	h.Handle(reconcile.Event{
		Kind:   reconcile.EventToolDeactivated,
		PassID: "pass-1",
		Tool:   mustStats(t, "upload1", "1.1.0"),
		Time:   now.Add(20 * time.Millisecond),
	})
	h.Handle(reconcile.Event{
		Kind:    reconcile.EventPassFinished,
		PassID:  "pass-1",
		Time:    now.Add(30 * time.Millisecond),
		Elapsed: 30 * time.Millisecond,
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	events := spans[0].Events
	if len(events) != 2 {
		t.Fatalf("expected 2 span events, got %d", len(events))
	}
	if events[0].Name != "tool.inserted" {
		t.Errorf("expected first event 'tool.inserted', got %q", events[0].Name)
	}
	if events[1].Name != "tool.deactivated" {
		t.Errorf("expected second event 'tool.deactivated', got %q", events[1].Name)
	}

	toolFound := false
	for _, attr := range events[0].Attributes {
		if string(attr.Key) == "toolstats.tool" && attr.Value.AsString() == "bwa/0.7.17" {
			toolFound = true
		}
	}
	if !toolFound {
		t.Error("expected toolstats.tool attribute on tool.inserted event")
	}
}

func TestTracingHandler_PassFailedSetsErrorStatus(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := statsotel.NewTracingHandler(tracer)

	now := time.Now()

	h.Handle(reconcile.Event{
		Kind:   reconcile.EventPassStarted,
		PassID: "pass-1",
		Time:   now,
	})
	h.Handle(reconcile.Event{
		Kind:    reconcile.EventPassFailed,
		PassID:  "pass-1",
		Time:    now.Add(50 * time.Millisecond),
		Elapsed: 50 * time.Millisecond,
		Err:     errors.New("catalog unavailable"),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	passSpan := spans[0]
	if passSpan.Status.Code != otelcodes.Error {
		t.Errorf("expected Error status, got %v", passSpan.Status.Code)
	}
	if passSpan.Status.Description != "catalog unavailable" {
		t.Errorf("expected error description on span, got %q", passSpan.Status.Description)
	}

	// RecordError attaches an exception event.
	exceptionFound := false
	for _, ev := range passSpan.Events {
		if ev.Name == "exception" {
			exceptionFound = true
		}
	}
	if !exceptionFound {
		t.Error("expected exception event on failed pass span")
	}
}

func TestTracingHandler_FinishWithoutStartIsNoOp(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := statsotel.NewTracingHandler(tracer)

	h.Handle(reconcile.Event{
		Kind:    reconcile.EventPassFinished,
		PassID:  "unknown",
		Time:    time.Now(),
		Elapsed: time.Second,
	})

	if spans := exporter.GetSpans(); len(spans) != 0 {
		t.Fatalf("expected no spans, got %d", len(spans))
	}
	if sc := h.ActivePassSpanContext("unknown"); sc.IsValid() {
		t.Error("expected no active span context for unknown pass")
	}
}

func TestTracingHandler_ToolEventWithoutPassIsDropped(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := statsotel.NewTracingHandler(tracer)

	h.Handle(reconcile.Event{
		Kind:   reconcile.EventToolInserted,
		PassID: "unknown",
		Tool:   mustStats(t, "bwa", "0.7.17"),
		Time:   time.Now(),
	})

	if spans := exporter.GetSpans(); len(spans) != 0 {
		t.Fatalf("expected no spans, got %d", len(spans))
	}
}
