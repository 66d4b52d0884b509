package commands

import (
	"context"
	"feedcloud/lib/telemetry"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	dbPath     *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "feedcloud",
	Short: "feedcloud turns the videos recommended on your bilibili home feed into a word cloud corpus.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "feedcloud.json5", "The config file to read, <name>.local.json5 overrides it.")
	dbPath = rootCmd.PersistentFlags().String("db", "", "The run archive, overrides the archive set in the config.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
