package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/runlab/toolstats/core"

	_ "modernc.org/sqlite"
)

const runtimesSQLiteSchema = `
CREATE TABLE IF NOT EXISTS runtimes (
	tool_id TEXT NOT NULL,
	base_tool_id TEXT NOT NULL,
	tool_version TEXT NOT NULL,
	update_time TEXT NOT NULL,
	run_count INTEGER,
	min_runtime INTEGER,
	median_runtime INTEGER,
	mean_runtime INTEGER,
	pct95_runtime INTEGER,
	pct99_runtime INTEGER,
	max_runtime INTEGER,
	active INTEGER NOT NULL DEFAULT 1,
	UNIQUE(tool_id, tool_version)
);

CREATE INDEX IF NOT EXISTS idx_runtimes_active_update
ON runtimes(active, update_time);`

// SQLiteStoreConfig configures the SQLite statistics store.
type SQLiteStoreConfig struct {
	// Path is the SQLite database file. Required. The schema is created on
	// open when missing.
	Path string

	// Now supplies the clock for staleness cutoffs and default update
	// times. Defaults to time.Now.
	Now func() time.Time
}

// SQLiteStore persists tool statistics records in SQLite. One row per
// (tool id, version) pair; rows are flagged inactive rather than deleted so
// retired tools stay auditable.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite-backed statistics store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("runtimes sqlite store path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("runtimes sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runtimes sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec(runtimesSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runtimes sqlite store create schema: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &SQLiteStore{db: db, now: now}, nil
}

func (s *SQLiteStore) ListActive(ctx context.Context) (map[string]core.ToolStats, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tool_id, base_tool_id, tool_version, update_time, run_count, min_runtime, median_runtime, mean_runtime, pct95_runtime, pct99_runtime, max_runtime, active
FROM runtimes
WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("runtimes sqlite store list active: %w", err)
	}
	defer rows.Close()

	records := make(map[string]core.ToolStats)
	for rows.Next() {
		stats, err := scanToolStats(rows)
		if err != nil {
			return nil, err
		}
		records[stats.Key()] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runtimes sqlite store list active rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) ListStale(ctx context.Context, olderThan time.Duration) (map[string]core.ToolStats, error) {
	cutoff := s.now().UTC().Add(-olderThan).Format(time.RFC3339Nano)

	rows, err := s.db.QueryContext(ctx, `
SELECT tool_id, base_tool_id, tool_version, update_time, run_count, min_runtime, median_runtime, mean_runtime, pct95_runtime, pct99_runtime, max_runtime, active
FROM runtimes
WHERE active = 1 AND update_time < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("runtimes sqlite store list stale: %w", err)
	}
	defer rows.Close()

	records := make(map[string]core.ToolStats)
	for rows.Next() {
		stats, err := scanToolStats(rows)
		if err != nil {
			return nil, err
		}
		records[stats.Key()] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runtimes sqlite store list stale rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]core.ToolStats, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tool_id, base_tool_id, tool_version, update_time, run_count, min_runtime, median_runtime, mean_runtime, pct95_runtime, pct99_runtime, max_runtime, active
FROM runtimes
ORDER BY tool_id ASC, tool_version ASC`)
	if err != nil {
		return nil, fmt.Errorf("runtimes sqlite store list all: %w", err)
	}
	defer rows.Close()

	var records []core.ToolStats
	for rows.Next() {
		stats, err := scanToolStats(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runtimes sqlite store list all rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Get(ctx context.Context, toolID, version string) (core.ToolStats, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT tool_id, base_tool_id, tool_version, update_time, run_count, min_runtime, median_runtime, mean_runtime, pct95_runtime, pct99_runtime, max_runtime, active
FROM runtimes
WHERE tool_id = ? AND tool_version = ?`, toolID, version)

	stats, err := scanToolStats(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ToolStats{}, false, nil
		}
		return core.ToolStats{}, false, err
	}
	return stats, true, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, stats core.ToolStats) error {
	if stats.UpdateTime.IsZero() {
		stats.UpdateTime = s.now().UTC()
	}

	active := 0
	if stats.Active {
		active = 1
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runtimes
	(tool_id, base_tool_id, tool_version, update_time, run_count, min_runtime, median_runtime, mean_runtime, pct95_runtime, pct99_runtime, max_runtime, active)
VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.Tool.ID,
		stats.Tool.BaseID,
		stats.Tool.Version,
		stats.UpdateTime.UTC().Format(time.RFC3339Nano),
		runCountArg(stats.RunCount),
		runtimeArg(stats.MinRuntime),
		runtimeArg(stats.MedianRuntime),
		runtimeArg(stats.MeanRuntime),
		runtimeArg(stats.Pct95Runtime),
		runtimeArg(stats.Pct99Runtime),
		runtimeArg(stats.MaxRuntime),
		active,
	)
	if err != nil {
		if isRuntimesSQLiteUniqueViolation(err) {
			return ErrToolExists
		}
		return fmt.Errorf("runtimes sqlite store insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, stats core.ToolStats) error {
	if stats.UpdateTime.IsZero() {
		stats.UpdateTime = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE runtimes
SET
	update_time = ?,
	run_count = ?,
	min_runtime = ?,
	median_runtime = ?,
	mean_runtime = ?,
	pct95_runtime = ?,
	pct99_runtime = ?,
	max_runtime = ?
WHERE tool_id = ? AND tool_version = ?`,
		stats.UpdateTime.UTC().Format(time.RFC3339Nano),
		runCountArg(stats.RunCount),
		runtimeArg(stats.MinRuntime),
		runtimeArg(stats.MedianRuntime),
		runtimeArg(stats.MeanRuntime),
		runtimeArg(stats.Pct95Runtime),
		runtimeArg(stats.Pct99Runtime),
		runtimeArg(stats.MaxRuntime),
		stats.Tool.ID,
		stats.Tool.Version,
	)
	if err != nil {
		return fmt.Errorf("runtimes sqlite store update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("runtimes sqlite store update affected rows: %w", err)
	}
	if affected == 0 {
		return ErrToolNotFound
	}
	return nil
}

func (s *SQLiteStore) Deactivate(ctx context.Context, stats core.ToolStats) error {
	updateTime := stats.UpdateTime
	if updateTime.IsZero() {
		updateTime = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE runtimes
SET active = 0, update_time = ?
WHERE tool_id = ? AND tool_version = ?`,
		updateTime.UTC().Format(time.RFC3339Nano),
		stats.Tool.ID,
		stats.Tool.Version,
	)
	if err != nil {
		return fmt.Errorf("runtimes sqlite store deactivate: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("runtimes sqlite store deactivate affected rows: %w", err)
	}
	if affected == 0 {
		return ErrToolNotFound
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type statsScanner interface {
	Scan(dest ...any) error
}

func scanToolStats(scanner statsScanner) (core.ToolStats, error) {
	var (
		toolID        string
		baseToolID    string
		version       string
		updateTime    string
		runCount      sql.NullInt64
		minRuntime    sql.NullInt64
		medianRuntime sql.NullInt64
		meanRuntime   sql.NullInt64
		pct95Runtime  sql.NullInt64
		pct99Runtime  sql.NullInt64
		maxRuntime    sql.NullInt64
		activeRaw     int
	)
	if err := scanner.Scan(
		&toolID,
		&baseToolID,
		&version,
		&updateTime,
		&runCount,
		&minRuntime,
		&medianRuntime,
		&meanRuntime,
		&pct95Runtime,
		&pct99Runtime,
		&maxRuntime,
		&activeRaw,
	); err != nil {
		return core.ToolStats{}, err
	}

	updated, err := time.Parse(time.RFC3339Nano, updateTime)
	if err != nil {
		return core.ToolStats{}, fmt.Errorf("runtimes sqlite store parse update_time: %w", err)
	}

	identity, err := core.NewToolIdentityWithBase(toolID, version, baseToolID)
	if err != nil {
		return core.ToolStats{}, fmt.Errorf("runtimes sqlite store rebuild identity: %w", err)
	}

	stats := core.ToolStats{
		Tool:          identity,
		UpdateTime:    updated,
		RunCount:      core.RunCountUnknown,
		MinRuntime:    runtimePtr(minRuntime),
		MedianRuntime: runtimePtr(medianRuntime),
		MeanRuntime:   runtimePtr(meanRuntime),
		Pct95Runtime:  runtimePtr(pct95Runtime),
		Pct99Runtime:  runtimePtr(pct99Runtime),
		MaxRuntime:    runtimePtr(maxRuntime),
		Active:        activeRaw == 1,
	}
	if runCount.Valid {
		stats.RunCount = runCount.Int64
	}

	return stats, nil
}

func isRuntimesSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed: runtimes.tool_id")
}

func runCountArg(count int64) any {
	if count == core.RunCountUnknown {
		return nil
	}
	return count
}

func runtimeArg(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func runtimePtr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

var _ Store = (*SQLiteStore)(nil)
