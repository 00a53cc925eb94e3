package core

import (
	"strings"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestNewToolStats_Defaults(t *testing.T) {
	id, err := NewToolIdentity("upload1", "1.1.0")
	if err != nil {
		t.Fatalf("NewToolIdentity() error = %v", err)
	}
	stats := NewToolStats(id)
	if stats.RunCount != RunCountUnknown {
		t.Errorf("RunCount = %d, want %d", stats.RunCount, RunCountUnknown)
	}
	if !stats.Active {
		t.Error("Active = false, want true")
	}
	if stats.MinRuntime != nil || stats.MaxRuntime != nil {
		t.Error("runtime fields should start nil")
	}
}

func TestApplySummary_TruncatesNotRounds(t *testing.T) {
	id, _ := NewToolIdentity("upload1", "1.1.0")
	stats := NewToolStats(id)

	stats.ApplySummary(RuntimeSummary{
		Min:    floatPtr(1.2),
		Median: floatPtr(12.9),
		Mean:   floatPtr(14.5001),
		Pct95:  floatPtr(99.99),
		Pct99:  floatPtr(100.0),
		Max:    floatPtr(240.7),
	})

	checks := []struct {
		name string
		got  *int64
		want int64
	}{
		{"MinRuntime", stats.MinRuntime, 1},
		{"MedianRuntime", stats.MedianRuntime, 12},
		{"MeanRuntime", stats.MeanRuntime, 14},
		{"Pct95Runtime", stats.Pct95Runtime, 99},
		{"Pct99Runtime", stats.Pct99Runtime, 100},
		{"MaxRuntime", stats.MaxRuntime, 240},
	}
	for _, check := range checks {
		if check.got == nil {
			t.Errorf("%s = nil, want %d", check.name, check.want)
			continue
		}
		if *check.got != check.want {
			t.Errorf("%s = %d, want %d", check.name, *check.got, check.want)
		}
	}
}

func TestApplySummary_NullAggregatesClearFields(t *testing.T) {
	id, _ := NewToolIdentity("upload1", "1.1.0")
	stats := NewToolStats(id)
	stats.ApplySummary(RuntimeSummary{Median: floatPtr(30)})
	if stats.MedianRuntime == nil {
		t.Fatal("MedianRuntime = nil after non-null summary")
	}

	stats.ApplySummary(RuntimeSummary{})
	if stats.MedianRuntime != nil {
		t.Errorf("MedianRuntime = %d, want nil after all-null summary", *stats.MedianRuntime)
	}
}

func TestRuntimeSummary_Empty(t *testing.T) {
	if !(RuntimeSummary{}).Empty() {
		t.Error("zero summary should be empty")
	}
	if (RuntimeSummary{Median: floatPtr(3)}).Empty() {
		t.Error("summary with a median should not be empty")
	}
}

func TestToolStats_String(t *testing.T) {
	id, _ := NewToolIdentity("devteam/bwa/0.7.17", "0.7.17")
	stats := NewToolStats(id)
	stats.RunCount = 42
	stats.ApplySummary(RuntimeSummary{Median: floatPtr(12.9)})

	out := stats.String()
	for _, want := range []string{
		"devteam/bwa/0.7.17: ",
		"run_count=42",
		"median_runtime=12",
		"min_runtime=null",
		"active=true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("String() = %q, missing %q", out, want)
		}
	}
}
