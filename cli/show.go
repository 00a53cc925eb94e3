package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/runlab/toolstats/cache"
	"github.com/runlab/toolstats/core"
)

// NewShowCmd creates the "show" subcommand.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <runtimes.db>",
		Short: "List cached runtime statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	cmd.Flags().Bool("all", false, "Include deactivated records")
	cmd.Flags().Duration("stale", 0, "Only show active records older than this window")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	staleWindow, _ := cmd.Flags().GetDuration("stale")
	if all && staleWindow > 0 {
		return exitError(exitConfig, "--all and --stale are mutually exclusive")
	}

	store, err := cache.NewSQLiteStore(cache.SQLiteStoreConfig{Path: args[0]})
	if err != nil {
		return exitError(exitConfig, "opening runtimes cache: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	records, err := collectShowRecords(cmd.Context(), store, all, staleWindow)
	if err != nil {
		return exitError(exitPass, "listing records: %v", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records.")
		return nil
	}
	printStatsTable(cmd.OutOrStdout(), records)
	return nil
}

func collectShowRecords(ctx context.Context, store cache.Store, all bool, staleWindow time.Duration) ([]core.ToolStats, error) {
	switch {
	case staleWindow > 0:
		stale, err := store.ListStale(ctx, staleWindow)
		if err != nil {
			return nil, err
		}
		return sortedRecords(stale), nil
	case all:
		return store.ListAll(ctx)
	default:
		active, err := store.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		return sortedRecords(active), nil
	}
}

func sortedRecords(byKey map[string]core.ToolStats) []core.ToolStats {
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]core.ToolStats, 0, len(keys))
	for _, key := range keys {
		records = append(records, byKey[key])
	}
	return records
}

func printStatsTable(w io.Writer, records []core.ToolStats) {
	writer := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "TOOL\tVERSION\tUPDATED\tRUNS\tMIN\tMEDIAN\tMEAN\tP95\tP99\tMAX\tACTIVE")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			rec.Tool.BaseID,
			rec.Tool.Version,
			rec.UpdateTime.UTC().Format(time.RFC3339),
			displayRunCount(rec.RunCount),
			displaySeconds(rec.MinRuntime),
			displaySeconds(rec.MedianRuntime),
			displaySeconds(rec.MeanRuntime),
			displaySeconds(rec.Pct95Runtime),
			displaySeconds(rec.Pct99Runtime),
			displaySeconds(rec.MaxRuntime),
			rec.Active,
		)
	}
	_ = writer.Flush()
}

func displayRunCount(count int64) string {
	if count == core.RunCountUnknown {
		return "-"
	}
	return strconv.FormatInt(count, 10)
}

func displaySeconds(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10) + "s"
}
