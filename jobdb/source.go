// Package jobdb aggregates historical tool runs out of a Galaxy-style
// PostgreSQL job database.
package jobdb

import (
	"context"
	"errors"

	"github.com/runlab/toolstats/core"
)

// ErrQueryFailed reports a job database failure. It is fatal for the pass
// that hit it; callers do not retry.
var ErrQueryFailed = errors.New("job database query failed")

// RunSource supplies run aggregates for one tool version at a time.
type RunSource interface {
	// RunCount returns the number of successfully completed runs.
	RunCount(ctx context.Context, tool core.ToolIdentity) (int64, error)

	// Summary returns the runtime distribution over successful runs. A tool
	// with no recorded runs yields an all-NULL summary, not an error.
	Summary(ctx context.Context, tool core.ToolIdentity) (core.RuntimeSummary, error)
}
