package commands

import (
	"feedcloud/internal/components/telemetry"
	"feedcloud/internal/reduce"
	"feedcloud/lib/serviceutil"
	"os"

	"github.com/spf13/cobra"
)

var reduceFields *bool

func init() {
	reduceFields = reduceCmd.Flags().Bool("fields", false, "Split on whitespace instead of dictionary segmentation.")
	rootCmd.AddCommand(reduceCmd)
}

var reduceCmd = &cobra.Command{
	Use:   "reduce <file>",
	Short: "Reduces a file of raw tag text and prints the most frequent tokens.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			serviceutil.Fatal("failed to read input", err)
		}

		kind := "dict"
		if *reduceFields {
			kind = "fields"
		}
		reducer := reduce.NewReducer(newSegmenter(kind), reduce.DefaultPolicy(), telemetry.SlogAPI{})
		printReduction(reducer.Reduce(cmd.Context(), string(raw)))
	},
}
