package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RunCountUnknown marks a record whose statistics have not been computed yet.
const RunCountUnknown int64 = -1

// RuntimeSummary is one aggregation over the runtime_seconds metric of a
// tool's successful runs. Nil fields mean the aggregate was NULL, i.e. zero
// runs matched. Quart1, Quart3, Sum, and StdDev are computed alongside the
// persisted aggregates but are not stored in the cache schema.
type RuntimeSummary struct {
	Min    *float64
	Quart1 *float64
	Median *float64
	Mean   *float64
	Quart3 *float64
	Pct95  *float64
	Pct99  *float64
	Max    *float64
	Sum    *float64
	StdDev *float64
}

// Empty reports whether the summary carries no data at all, which happens
// when no successful runs matched the tool identity.
func (s RuntimeSummary) Empty() bool {
	return s.Min == nil &&
		s.Median == nil &&
		s.Mean == nil &&
		s.Pct95 == nil &&
		s.Pct99 == nil &&
		s.Max == nil
}

// ToolStats is the cached statistics record for one tool identity. Runtime
// fields are nil until the first computation lands; RunCount uses the
// RunCountUnknown sentinel for the same purpose.
type ToolStats struct {
	Tool          ToolIdentity
	UpdateTime    time.Time
	RunCount      int64
	MinRuntime    *int64
	MedianRuntime *int64
	MeanRuntime   *int64
	Pct95Runtime  *int64
	Pct99Runtime  *int64
	MaxRuntime    *int64
	Active        bool
}

// NewToolStats creates an active record with an unknown run count.
func NewToolStats(tool ToolIdentity) ToolStats {
	return ToolStats{
		Tool:     tool,
		RunCount: RunCountUnknown,
		Active:   true,
	}
}

// Key returns the canonical cache key of the underlying identity.
func (s ToolStats) Key() string {
	return s.Tool.Key()
}

// ApplySummary copies the persisted aggregates from a runtime summary,
// truncating fractional seconds toward zero (12.9 persists as 12). NULL
// aggregates clear the corresponding field.
func (s *ToolStats) ApplySummary(summary RuntimeSummary) {
	s.MinRuntime = truncateSeconds(summary.Min)
	s.MedianRuntime = truncateSeconds(summary.Median)
	s.MeanRuntime = truncateSeconds(summary.Mean)
	s.Pct95Runtime = truncateSeconds(summary.Pct95)
	s.Pct99Runtime = truncateSeconds(summary.Pct99)
	s.MaxRuntime = truncateSeconds(summary.Max)
}

// String renders the one-line summary logged for every cache mutation.
func (s ToolStats) String() string {
	var b strings.Builder
	b.WriteString(s.Key())
	b.WriteString(": run_count=")
	b.WriteString(strconv.FormatInt(s.RunCount, 10))
	b.WriteString(", min_runtime=")
	b.WriteString(formatSeconds(s.MinRuntime))
	b.WriteString(", median_runtime=")
	b.WriteString(formatSeconds(s.MedianRuntime))
	b.WriteString(", mean_runtime=")
	b.WriteString(formatSeconds(s.MeanRuntime))
	b.WriteString(", pct95_runtime=")
	b.WriteString(formatSeconds(s.Pct95Runtime))
	b.WriteString(", pct99_runtime=")
	b.WriteString(formatSeconds(s.Pct99Runtime))
	b.WriteString(", max_runtime=")
	b.WriteString(formatSeconds(s.MaxRuntime))
	fmt.Fprintf(&b, ", active=%t", s.Active)
	return b.String()
}

func formatSeconds(v *int64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatInt(*v, 10)
}

func truncateSeconds(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}
