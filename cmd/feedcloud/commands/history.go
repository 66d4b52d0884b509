package commands

import (
	"errors"
	"feedcloud/internal/archive"
	"feedcloud/lib/serviceutil"

	"github.com/spf13/cobra"
)

var historyLimit *int

func init() {
	historyLimit = historyCmd.Flags().Int("limit", 20, "The maximum number of runs to list.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--db <path/to/archive.db>] [--limit n]",
	Short: "Lists archived runs, most recent first.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		if cfg.Archive == "" {
			serviceutil.Fatal("no archive to read", errors.New("set --db or archive in the config"))
		}

		a, err := archive.Open(cfg.Archive)
		if err != nil {
			serviceutil.Fatal("failed to open archive", err)
		}
		defer a.Close()

		runs, err := a.List(cmd.Context(), *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}
		printRuns(runs)
	},
}
