package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/runlab/toolstats/cache"
	"github.com/runlab/toolstats/catalog"
	"github.com/runlab/toolstats/core"
	"github.com/runlab/toolstats/jobdb"
)

// DefaultStalenessWindow matches the historical one-week refresh cadence.
const DefaultStalenessWindow = 168 * time.Hour

// Config configures a Reconciler. Catalog, Cache, and Runs are required.
type Config struct {
	Catalog catalog.Source
	Cache   cache.Store
	Runs    jobdb.RunSource

	// StalenessWindow selects active records for re-aggregation. Defaults
	// to DefaultStalenessWindow.
	StalenessWindow time.Duration

	Now     func() time.Time
	Logger  *slog.Logger
	OnEvent EventHandler
}

// Counts tallies the mutations one pass committed.
type Counts struct {
	Inserted    int
	Deactivated int
	Refreshed   int
	Empty       int
}

// Report summarizes one reconciliation pass. On failure the counts reflect
// the mutations committed before the abort.
type Report struct {
	PassID   string
	Started  time.Time
	Finished time.Time
	Counts   Counts
}

// Reconciler drives one cache toward one catalog. A pass is sequential:
// inserts, then deactivations, then refreshes, each key in sorted order,
// each record committed independently. The first error aborts the pass and
// leaves prior commits in place.
type Reconciler struct {
	catalog         catalog.Source
	cache           cache.Store
	runs            jobdb.RunSource
	stalenessWindow time.Duration
	now             func() time.Time
	logger          *slog.Logger
	onEvent         EventHandler
}

// NewReconciler creates a reconciler instance.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("reconciler catalog source is nil")
	}
	if cfg.Cache == nil {
		return nil, errors.New("reconciler cache store is nil")
	}
	if cfg.Runs == nil {
		return nil, errors.New("reconciler run source is nil")
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Reconciler{
		catalog:         cfg.Catalog,
		cache:           cfg.Cache,
		runs:            cfg.Runs,
		stalenessWindow: cfg.StalenessWindow,
		now:             cfg.Now,
		logger:          cfg.Logger,
		onEvent:         cfg.OnEvent,
	}, nil
}

// Run executes one reconciliation pass. Membership and staleness are
// snapshotted before the first mutation, so a record inserted or
// deactivated during this pass is never also refresh-selected by it.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	report := Report{
		PassID:  uuid.NewString(),
		Started: r.now().UTC(),
	}
	r.emit(Event{Kind: EventPassStarted, PassID: report.PassID, Time: report.Started})

	catalogTools, err := r.catalog.Tools(ctx)
	if err != nil {
		return r.fail(report, fmt.Errorf("reconcile: fetch catalog: %w", err))
	}
	activeTools, err := r.cache.ListActive(ctx)
	if err != nil {
		return r.fail(report, fmt.Errorf("reconcile: list active records: %w", err))
	}
	staleTools, err := r.cache.ListStale(ctx, r.stalenessWindow)
	if err != nil {
		return r.fail(report, fmt.Errorf("reconcile: list stale records: %w", err))
	}

	diff := ComputeDiff(catalogTools, activeTools)
	r.logger.Debug("computed membership diff",
		"pass_id", report.PassID,
		"catalog", len(catalogTools),
		"active", len(activeTools),
		"to_insert", len(diff.ToInsert),
		"to_deactivate", len(diff.ToDeactivate),
		"stale", len(staleTools),
	)

	for _, key := range diff.ToInsert {
		stats := core.NewToolStats(catalogTools[key])
		stats.UpdateTime = r.now().UTC()
		if err := r.aggregate(ctx, &stats); err != nil {
			return r.fail(report, err)
		}
		if err := r.cache.Insert(ctx, stats); err != nil {
			return r.fail(report, fmt.Errorf("reconcile: insert %s: %w", stats.Key(), err))
		}
		report.Counts.Inserted++
		r.emitTool(EventToolInserted, &report, stats)
		if stats.RunCount == 0 {
			report.Counts.Empty++
			r.emitTool(EventToolEmpty, &report, stats)
		}
	}

	for _, key := range diff.ToDeactivate {
		stats := activeTools[key]
		stats.UpdateTime = r.now().UTC()
		if err := r.cache.Deactivate(ctx, stats); err != nil {
			return r.fail(report, fmt.Errorf("reconcile: deactivate %s: %w", stats.Key(), err))
		}
		stats.Active = false
		report.Counts.Deactivated++
		r.emitTool(EventToolDeactivated, &report, stats)
	}

	for _, key := range refreshKeys(staleTools, diff.ToDeactivate) {
		stats := staleTools[key]
		stats.UpdateTime = r.now().UTC()
		if err := r.aggregate(ctx, &stats); err != nil {
			return r.fail(report, err)
		}
		if err := r.cache.Update(ctx, stats); err != nil {
			return r.fail(report, fmt.Errorf("reconcile: refresh %s: %w", stats.Key(), err))
		}
		report.Counts.Refreshed++
		r.emitTool(EventToolRefreshed, &report, stats)
		if stats.RunCount == 0 {
			report.Counts.Empty++
			r.emitTool(EventToolEmpty, &report, stats)
		}
	}

	report.Finished = r.now().UTC()
	r.emit(Event{
		Kind:    EventPassFinished,
		PassID:  report.PassID,
		Time:    report.Finished,
		Elapsed: report.Finished.Sub(report.Started),
		Counts:  report.Counts,
	})
	return report, nil
}

// ForceTool aggregates and upserts a single tool version, regardless of
// catalog membership or staleness. The id must carry the version as its
// final "/" segment.
func (r *Reconciler) ForceTool(ctx context.Context, fullID string) (core.ToolStats, error) {
	tool, err := core.ParseToolID(fullID)
	if err != nil {
		return core.ToolStats{}, fmt.Errorf("reconcile: force tool: %w", err)
	}

	stats := core.NewToolStats(tool)
	stats.UpdateTime = r.now().UTC()
	if err := r.aggregate(ctx, &stats); err != nil {
		return core.ToolStats{}, err
	}

	err = r.cache.Update(ctx, stats)
	if errors.Is(err, cache.ErrToolNotFound) {
		err = r.cache.Insert(ctx, stats)
	}
	if err != nil {
		return core.ToolStats{}, fmt.Errorf("reconcile: force tool %s: %w", stats.Key(), err)
	}
	return stats, nil
}

// aggregate fills run count and runtime statistics from the run source.
// A tool with no successful runs comes back with count 0 and nil runtime
// fields, which is persisted as-is.
func (r *Reconciler) aggregate(ctx context.Context, stats *core.ToolStats) error {
	count, err := r.runs.RunCount(ctx, stats.Tool)
	if err != nil {
		return fmt.Errorf("reconcile: aggregate %s: %w", stats.Key(), err)
	}
	stats.RunCount = count

	summary, err := r.runs.Summary(ctx, stats.Tool)
	if err != nil {
		return fmt.Errorf("reconcile: aggregate %s: %w", stats.Key(), err)
	}
	stats.ApplySummary(summary)
	return nil
}

// refreshKeys returns the stale snapshot minus keys deactivated this pass,
// sorted.
func refreshKeys(stale map[string]core.ToolStats, toDeactivate []string) []string {
	deactivated := make(map[string]struct{}, len(toDeactivate))
	for _, key := range toDeactivate {
		deactivated[key] = struct{}{}
	}

	keys := make([]string, 0, len(stale))
	for key := range stale {
		if _, ok := deactivated[key]; ok {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (r *Reconciler) fail(report Report, err error) (Report, error) {
	report.Finished = r.now().UTC()
	r.emit(Event{
		Kind:    EventPassFailed,
		PassID:  report.PassID,
		Time:    report.Finished,
		Elapsed: report.Finished.Sub(report.Started),
		Counts:  report.Counts,
		Err:     err,
	})
	return report, err
}

func (r *Reconciler) emitTool(kind EventKind, report *Report, stats core.ToolStats) {
	now := r.now().UTC()
	snapshot := stats
	r.emit(Event{
		Kind:    kind,
		PassID:  report.PassID,
		Tool:    &snapshot,
		Time:    now,
		Elapsed: now.Sub(report.Started),
	})
}

func (r *Reconciler) emit(e Event) {
	if r.onEvent == nil {
		return
	}
	r.onEvent(e)
}
