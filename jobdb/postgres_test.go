package jobdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/runlab/toolstats/core"
)

type fakeSummaryRow struct {
	values []any
	err    error
}

func (r fakeSummaryRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("fake row: %d dests, %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		target, ok := d.(*sql.NullFloat64)
		if !ok {
			return fmt.Errorf("fake row: dest %d is %T, want *sql.NullFloat64", i, d)
		}
		if r.values[i] == nil {
			*target = sql.NullFloat64{}
			continue
		}
		*target = sql.NullFloat64{Float64: r.values[i].(float64), Valid: true}
	}
	return nil
}

func TestScanRuntimeSummary_AllNull(t *testing.T) {
	row := fakeSummaryRow{values: make([]any, 10)}

	summary, err := scanRuntimeSummary(row)
	if err != nil {
		t.Fatalf("scanRuntimeSummary: %v", err)
	}
	if !summary.Empty() {
		t.Fatalf("summary not empty: %+v", summary)
	}
	if summary.Min != nil || summary.Median != nil || summary.StdDev != nil {
		t.Fatalf("expected nil aggregates, got %+v", summary)
	}
}

func TestScanRuntimeSummary_ColumnOrder(t *testing.T) {
	row := fakeSummaryRow{values: []any{
		1.5,    // min
		4.0,    // quant_1st
		9.0,    // median
		11.25,  // mean
		15.0,   // quant_3rd
		30.0,   // perc_95
		55.0,   // perc_99
		120.75, // max
		900.0,  // sum
		12.5,   // stddev
	}}

	summary, err := scanRuntimeSummary(row)
	if err != nil {
		t.Fatalf("scanRuntimeSummary: %v", err)
	}

	checks := []struct {
		name string
		got  *float64
		want float64
	}{
		{"Min", summary.Min, 1.5},
		{"Quart1", summary.Quart1, 4.0},
		{"Median", summary.Median, 9.0},
		{"Mean", summary.Mean, 11.25},
		{"Quart3", summary.Quart3, 15.0},
		{"Pct95", summary.Pct95, 30.0},
		{"Pct99", summary.Pct99, 55.0},
		{"Max", summary.Max, 120.75},
		{"Sum", summary.Sum, 900.0},
		{"StdDev", summary.StdDev, 12.5},
	}
	for _, check := range checks {
		if check.got == nil {
			t.Errorf("%s = nil, want %v", check.name, check.want)
			continue
		}
		if *check.got != check.want {
			t.Errorf("%s = %v, want %v", check.name, *check.got, check.want)
		}
	}
}

func TestScanRuntimeSummary_ScanError(t *testing.T) {
	scanErr := errors.New("bad row")
	_, err := scanRuntimeSummary(fakeSummaryRow{err: scanErr})
	if !errors.Is(err, scanErr) {
		t.Fatalf("got %v, want wrapped scan error", err)
	}
}

func TestNewPostgresSource_RequiresDSN(t *testing.T) {
	if _, err := NewPostgresSource(PostgresSourceConfig{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
	if _, err := NewPostgresSource(PostgresSourceConfig{DSN: "   "}); err == nil {
		t.Fatal("expected error for blank dsn")
	}
}

func TestPostgresSource_QueryFailureWrapsSentinel(t *testing.T) {
	source, err := NewPostgresSource(PostgresSourceConfig{
		DSN:          "postgres://toolstats@127.0.0.1:1/galaxy?sslmode=disable&connect_timeout=1",
		QueryTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewPostgresSource: %v", err)
	}
	t.Cleanup(func() {
		_ = source.Close()
	})

	tool, err := core.NewToolIdentity("upload1", "1.1.0")
	if err != nil {
		t.Fatalf("NewToolIdentity: %v", err)
	}

	if _, err := source.RunCount(context.Background(), tool); !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("RunCount error = %v, want ErrQueryFailed", err)
	}
	if _, err := source.Summary(context.Background(), tool); !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("Summary error = %v, want ErrQueryFailed", err)
	}
}
