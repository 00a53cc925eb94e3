package jobdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/runlab/toolstats/core"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DefaultQueryTimeout bounds a single aggregation query.
const DefaultQueryTimeout = 60 * time.Second

const runCountSQL = `
SELECT
    count(tool_id) AS run_count
FROM job
WHERE
    tool_id = $1
    AND tool_version = $2
    AND state = 'ok'`

// Percentiles are cast to bigint server-side; min, mean, max, sum, and
// stddev come back as numerics and are truncated at persist time.
const runtimeSummarySQL = `
WITH runtime_data AS (
    SELECT
        metric_value
    FROM job_metric_numeric
    WHERE
        metric_name = 'runtime_seconds'
        AND job_id IN (
            SELECT
                id
            FROM job
            WHERE
                tool_id = $1
                AND tool_version = $2
                AND state = 'ok'
        )
)
SELECT
    min(metric_value) AS min,
    percentile_cont(0.25) WITHIN GROUP (ORDER BY metric_value) ::bigint AS quant_1st,
    percentile_cont(0.50) WITHIN GROUP (ORDER BY metric_value) ::bigint AS median,
    avg(metric_value) AS mean,
    percentile_cont(0.75) WITHIN GROUP (ORDER BY metric_value) ::bigint AS quant_3rd,
    percentile_cont(0.95) WITHIN GROUP (ORDER BY metric_value) ::bigint AS perc_95,
    percentile_cont(0.99) WITHIN GROUP (ORDER BY metric_value) ::bigint AS perc_99,
    max(metric_value) AS max,
    sum(metric_value) AS sum,
    stddev(metric_value) AS stddev
FROM runtime_data`

// PostgresSourceConfig configures the PostgreSQL run source.
type PostgresSourceConfig struct {
	// DSN is the PostgreSQL connection string. Required.
	DSN string

	// QueryTimeout bounds each query. Defaults to DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// PostgresSource reads run aggregates from the Galaxy job tables through the
// pgx stdlib driver. Connections are pooled and established on first use.
type PostgresSource struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewPostgresSource opens a run source against the job database.
func NewPostgresSource(cfg PostgresSourceConfig) (*PostgresSource, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("jobdb postgres dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("jobdb postgres open: %w", err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	return &PostgresSource{db: db, queryTimeout: timeout}, nil
}

func (s *PostgresSource) RunCount(ctx context.Context, tool core.ToolIdentity) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var count int64
	if err := s.db.QueryRowContext(ctx, runCountSQL, tool.ID, tool.Version).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: run count for %s: %v", ErrQueryFailed, tool.Key(), err)
	}
	return count, nil
}

func (s *PostgresSource) Summary(ctx context.Context, tool core.ToolIdentity) (core.RuntimeSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, runtimeSummarySQL, tool.ID, tool.Version)
	summary, err := scanRuntimeSummary(row)
	if err != nil {
		return core.RuntimeSummary{}, fmt.Errorf("%w: runtime summary for %s: %v", ErrQueryFailed, tool.Key(), err)
	}
	return summary, nil
}

// Close closes the underlying connection pool.
func (s *PostgresSource) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type summaryScanner interface {
	Scan(dest ...any) error
}

func scanRuntimeSummary(scanner summaryScanner) (core.RuntimeSummary, error) {
	var (
		min    sql.NullFloat64
		quart1 sql.NullFloat64
		median sql.NullFloat64
		mean   sql.NullFloat64
		quart3 sql.NullFloat64
		pct95  sql.NullFloat64
		pct99  sql.NullFloat64
		max    sql.NullFloat64
		sum    sql.NullFloat64
		stddev sql.NullFloat64
	)
	if err := scanner.Scan(
		&min,
		&quart1,
		&median,
		&mean,
		&quart3,
		&pct95,
		&pct99,
		&max,
		&sum,
		&stddev,
	); err != nil {
		return core.RuntimeSummary{}, err
	}

	return core.RuntimeSummary{
		Min:    summaryPtr(min),
		Quart1: summaryPtr(quart1),
		Median: summaryPtr(median),
		Mean:   summaryPtr(mean),
		Quart3: summaryPtr(quart3),
		Pct95:  summaryPtr(pct95),
		Pct99:  summaryPtr(pct99),
		Max:    summaryPtr(max),
		Sum:    summaryPtr(sum),
		StdDev: summaryPtr(stddev),
	}, nil
}

func summaryPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

var _ RunSource = (*PostgresSource)(nil)
