package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runlab/toolstats/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "toolstats",
	Short: "Tool runtime statistics cache for Galaxy servers",
	Long: "toolstats maintains a local SQLite cache of per-tool runtime statistics " +
		"aggregated from a Galaxy job database, kept in step with the server's tool catalog.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("toolstats version %s\n", version))

	rootCmd.AddCommand(cli.NewSyncCmd())
	rootCmd.AddCommand(cli.NewWatchCmd())
	rootCmd.AddCommand(cli.NewShowCmd())
}
