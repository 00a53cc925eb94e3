package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/runlab/toolstats/cache"
	"github.com/runlab/toolstats/catalog"
	"github.com/runlab/toolstats/config"
	"github.com/runlab/toolstats/jobdb"
	statsotel "github.com/runlab/toolstats/otel"
	"github.com/runlab/toolstats/reconcile"
)

// defaultGalaxyURL is the public Galaxy server the catalog defaults to.
const defaultGalaxyURL = "https://usegalaxy.org"

// NewSyncCmd creates the "sync" subcommand.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <runtimes.db>",
		Short: "Run one reconciliation pass against the tool catalog",
		Long: "Sync fetches the server tool catalog, inserts statistics records for new " +
			"tool versions, deactivates records whose versions left the catalog, and " +
			"re-aggregates records older than the staleness window.",
		Args: cobra.ExactArgs(1),
		RunE: runSync,
	}

	addPassFlags(cmd)
	cmd.Flags().String("tool-id", "", "Update a single versioned tool id and exit")

	return cmd
}

// addPassFlags registers the flags shared by the sync and watch commands.
func addPassFlags(cmd *cobra.Command) {
	cmd.Flags().String("jobs-dsn", "", "Postgres DSN of the job database")
	cmd.Flags().String("galaxy-url", defaultGalaxyURL, "Base URL of the Galaxy server")
	cmd.Flags().Duration("older-than", reconcile.DefaultStalenessWindow, "Refresh records not updated within this window")
	cmd.Flags().String("config", "", "Path to toolstats.yaml")
	cmd.Flags().Duration("http-timeout", catalog.DefaultTimeout, "Tool catalog request timeout")
	cmd.Flags().Duration("query-timeout", jobdb.DefaultQueryTimeout, "Job database query timeout")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP collector for traces (host:port)")
	cmd.Flags().Bool("otlp-insecure", false, "Disable TLS on the OTLP exporter connection")
	cmd.Flags().Bool("quiet", false, "Suppress per-tool log lines")
	cmd.Flags().Bool("verbose", false, "Enable debug logging")
}

// passOptions holds the merged settings for one pass: flag values override
// config file values, which override built-in defaults.
type passOptions struct {
	dbPath       string
	galaxyURL    string
	jobsDSN      string
	olderThan    time.Duration
	httpTimeout  time.Duration
	queryTimeout time.Duration
	otlpEndpoint string
	otlpInsecure bool
	schedule     string
	quiet        bool
	verbose      bool
}

func resolvePassOptions(cmd *cobra.Command, dbPath string) (passOptions, error) {
	opts := passOptions{dbPath: dbPath}
	opts.galaxyURL, _ = cmd.Flags().GetString("galaxy-url")
	opts.jobsDSN, _ = cmd.Flags().GetString("jobs-dsn")
	opts.olderThan, _ = cmd.Flags().GetDuration("older-than")
	opts.httpTimeout, _ = cmd.Flags().GetDuration("http-timeout")
	opts.queryTimeout, _ = cmd.Flags().GetDuration("query-timeout")
	opts.otlpEndpoint, _ = cmd.Flags().GetString("otlp-endpoint")
	opts.otlpInsecure, _ = cmd.Flags().GetBool("otlp-insecure")
	opts.quiet, _ = cmd.Flags().GetBool("quiet")
	opts.verbose, _ = cmd.Flags().GetBool("verbose")
	if cmd.Flags().Lookup("schedule") != nil {
		opts.schedule, _ = cmd.Flags().GetString("schedule")
	}

	explicitConfig, _ := cmd.Flags().GetString("config")
	path, found, err := config.Discover(explicitConfig)
	if err != nil {
		return passOptions{}, exitError(exitConfig, "%v", err)
	}
	if !found {
		return opts, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return passOptions{}, exitError(exitConfig, "%v", err)
	}
	if err := applyConfigFile(cmd, cfg, &opts); err != nil {
		return passOptions{}, err
	}
	return opts, nil
}

// applyConfigFile fills options the user did not set on the command line.
func applyConfigFile(cmd *cobra.Command, cfg config.File, opts *passOptions) error {
	flags := cmd.Flags()
	if !flags.Changed("galaxy-url") && cfg.GalaxyURL != "" {
		opts.galaxyURL = cfg.GalaxyURL
	}
	if !flags.Changed("jobs-dsn") && cfg.JobsDSN != "" {
		opts.jobsDSN = cfg.JobsDSN
	}
	if !flags.Changed("older-than") {
		d, err := cfg.OlderThanDuration()
		if err != nil {
			return exitError(exitConfig, "%v", err)
		}
		if d > 0 {
			opts.olderThan = d
		}
	}
	if !flags.Changed("http-timeout") {
		d, err := cfg.HTTPTimeoutDuration()
		if err != nil {
			return exitError(exitConfig, "%v", err)
		}
		if d > 0 {
			opts.httpTimeout = d
		}
	}
	if !flags.Changed("query-timeout") {
		d, err := cfg.QueryTimeoutDuration()
		if err != nil {
			return exitError(exitConfig, "%v", err)
		}
		if d > 0 {
			opts.queryTimeout = d
		}
	}
	if !flags.Changed("otlp-endpoint") && cfg.OTLPEndpoint != "" {
		opts.otlpEndpoint = cfg.OTLPEndpoint
	}
	if flags.Lookup("schedule") != nil && !flags.Changed("schedule") && cfg.Schedule != "" {
		opts.schedule = cfg.Schedule
	}
	return nil
}

// newPassLogger builds the stderr logger for pass output. Quiet keeps
// warnings and errors; verbose adds scheduler and diff debug lines.
func newPassLogger(opts passOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.quiet {
		level = slog.LevelWarn
	}
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// passRuntime bundles a wired reconciler with the resources it owns.
type passRuntime struct {
	reconciler *reconcile.Reconciler
	store      *cache.SQLiteStore
	source     *jobdb.PostgresSource
	shutdown   func(context.Context) error
}

func (p *passRuntime) close() {
	if p.shutdown != nil {
		_ = p.shutdown(context.Background())
	}
	_ = p.source.Close()
	_ = p.store.Close()
}

// buildPassRuntime opens the cache and job database and wires the
// reconciler. The cache schema is created on first open.
func buildPassRuntime(ctx context.Context, opts passOptions, logger *slog.Logger) (*passRuntime, error) {
	if strings.TrimSpace(opts.jobsDSN) == "" {
		return nil, exitError(exitConfig, "a job database is required (--jobs-dsn or jobs_dsn in config)")
	}

	catalogClient, err := catalog.NewClient(catalog.ClientConfig{
		BaseURL: opts.galaxyURL,
		Timeout: opts.httpTimeout,
	})
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}

	store, err := cache.NewSQLiteStore(cache.SQLiteStoreConfig{Path: opts.dbPath})
	if err != nil {
		return nil, exitError(exitConfig, "opening runtimes cache: %v", err)
	}

	source, err := jobdb.NewPostgresSource(jobdb.PostgresSourceConfig{
		DSN:          opts.jobsDSN,
		QueryTimeout: opts.queryTimeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, exitError(exitConfig, "opening job database: %v", err)
	}

	handler := reconcile.LogHandler(logger)
	var shutdown func(context.Context) error
	if opts.otlpEndpoint != "" {
		shutdown, err = statsotel.Setup(ctx, statsotel.SetupConfig{
			Endpoint: opts.otlpEndpoint,
			Insecure: opts.otlpInsecure,
		})
		if err != nil {
			_ = source.Close()
			_ = store.Close()
			return nil, exitError(exitConfig, "otel setup: %v", err)
		}
		metricsHandler, err := statsotel.NewMetricsHandler(otelapi.GetMeterProvider().Meter("toolstats"))
		if err != nil {
			_ = shutdown(context.Background())
			_ = source.Close()
			_ = store.Close()
			return nil, exitError(exitConfig, "otel metrics: %v", err)
		}
		tracingHandler := statsotel.NewTracingHandler(otelapi.GetTracerProvider().Tracer("toolstats"))
		handler = reconcile.MultiEventHandler(handler, metricsHandler.Handle, tracingHandler.Handle)
	}

	rec, err := reconcile.NewReconciler(reconcile.Config{
		Catalog:         catalogClient,
		Cache:           store,
		Runs:            source,
		StalenessWindow: opts.olderThan,
		Logger:          logger,
		OnEvent:         handler,
	})
	if err != nil {
		if shutdown != nil {
			_ = shutdown(context.Background())
		}
		_ = source.Close()
		_ = store.Close()
		return nil, exitError(exitConfig, "%v", err)
	}

	return &passRuntime{
		reconciler: rec,
		store:      store,
		source:     source,
		shutdown:   shutdown,
	}, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	opts, err := resolvePassOptions(cmd, args[0])
	if err != nil {
		return err
	}
	logger := newPassLogger(opts)
	toolID, _ := cmd.Flags().GetString("tool-id")

	rt, err := buildPassRuntime(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	out := cmd.OutOrStdout()

	if clean := strings.TrimSpace(toolID); clean != "" {
		stats, err := rt.reconciler.ForceTool(cmd.Context(), clean)
		if err != nil {
			return passError(err)
		}
		fmt.Fprintf(out, "Updated %s\n", stats.String())
		return nil
	}

	report, err := rt.reconciler.Run(cmd.Context())
	if err != nil {
		return passError(err)
	}

	fmt.Fprintf(out, "Pass finished in %s: %d inserted, %d deactivated, %d refreshed, %d without runs\n",
		report.Finished.Sub(report.Started).Round(time.Millisecond),
		report.Counts.Inserted, report.Counts.Deactivated, report.Counts.Refreshed, report.Counts.Empty)
	return nil
}

// passError maps reconciliation failures onto process exit codes.
func passError(err error) error {
	if errors.Is(err, catalog.ErrUnavailable) {
		return exitError(exitCatalog, "%v", err)
	}
	return exitError(exitPass, "%v", err)
}
