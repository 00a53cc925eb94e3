package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/runlab/toolstats/reconcile"
)

// NewWatchCmd creates the "watch" subcommand.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <runtimes.db>",
		Short: "Run reconciliation passes on a cron schedule",
		Long: "Watch runs an immediate reconciliation pass and then repeats on the " +
			"given five-field cron schedule (UTC) until interrupted. A pass that is " +
			"still running when the next fire time arrives makes that fire a no-op.",
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	addPassFlags(cmd)
	cmd.Flags().String("schedule", "", "Five-field cron expression, evaluated in UTC")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := resolvePassOptions(cmd, args[0])
	if err != nil {
		return err
	}
	if strings.TrimSpace(opts.schedule) == "" {
		return exitError(exitConfig, "a cron schedule is required (--schedule or schedule in config)")
	}
	logger := newPassLogger(opts)

	rt, err := buildPassRuntime(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	scheduler, err := reconcile.NewScheduler(reconcile.SchedulerConfig{
		Reconciler: rt.reconciler,
		CronExpr:   opts.schedule,
		Logger:     logger,
	})
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(ctx); err != nil {
		return exitError(exitPass, "starting scheduler: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s on schedule %q\n", opts.dbPath, opts.schedule)

	// Pass failures in watch mode only log, so a transient catalog or
	// database outage does not kill the watcher.
	if _, err := scheduler.RunOnce(ctx); err != nil {
		logger.Error("initial pass failed", "error", err)
	}

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		return exitError(exitPass, "stopping scheduler: %v", err)
	}
	return nil
}
