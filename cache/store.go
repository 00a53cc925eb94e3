// Package cache persists per-tool runtime statistics records and answers the
// membership and staleness queries the reconciler is built on.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/runlab/toolstats/core"
)

// Sentinel errors for store operations.
var (
	ErrToolExists   = errors.New("tool stats record already exists")
	ErrToolNotFound = errors.New("tool stats record not found")
)

// Store is the persistence contract for tool statistics records. Records are
// keyed by (tool id, version); list results are keyed by the canonical
// "base/version" key so they line up with catalog sets.
//
// Every write commits independently: a pass that dies halfway leaves a
// partially updated but never corrupt cache.
type Store interface {
	// ListActive returns all records with active = true.
	ListActive(ctx context.Context) (map[string]core.ToolStats, error)

	// ListStale returns active records whose update time precedes
	// now minus olderThan.
	ListStale(ctx context.Context, olderThan time.Duration) (map[string]core.ToolStats, error)

	// ListAll returns every record, deactivated ones included, ordered by
	// tool id then version. This is the audit read path.
	ListAll(ctx context.Context) ([]core.ToolStats, error)

	// Get looks a record up by its exact (tool id, version) pair.
	Get(ctx context.Context, toolID, version string) (core.ToolStats, bool, error)

	// Insert creates a record; ErrToolExists when the pair is already present.
	Insert(ctx context.Context, stats core.ToolStats) error

	// Update overwrites run count, runtime fields, and update time of an
	// existing record. It never touches the active flag. ErrToolNotFound
	// when no row matches.
	Update(ctx context.Context, stats core.ToolStats) error

	// Deactivate clears the active flag and refreshes the update time,
	// leaving all statistics fields untouched. ErrToolNotFound when no row
	// matches.
	Deactivate(ctx context.Context, stats core.ToolStats) error
}
