package cli

import (
	"github.com/spf13/cobra"

	"merchant-metrics-pipeline/internal/app"
)

var (
	generateOut    string
	generateStart  string
	generateDays   int
	generatePerDay int
	generateSeed   int64
	generateNoBad  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write seeded sample merchant and transaction CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.GenerateOptions{
			OutputDir: generateOut,
			StartDate: generateStart,
			Days:      generateDays,
			PerDay:    generatePerDay,
			Seed:      generateSeed,
		}
		if cmd.Flags().Changed("no-bad-records") {
			bad := !generateNoBad
			opts.BadRecords = &bad
		}
		return getApp().Generate(cmd.Context(), opts)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Output directory (defaults to config)")
	generateCmd.Flags().StringVar(&generateStart, "start", "", "First day to generate (YYYY-MM-DD)")
	generateCmd.Flags().IntVar(&generateDays, "days", 0, "Number of days to generate (defaults to config)")
	generateCmd.Flags().IntVar(&generatePerDay, "per-day", 0, "Transactions per day (defaults to config)")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "Random seed (defaults to config)")
	generateCmd.Flags().BoolVar(&generateNoBad, "no-bad-records", false, "Skip the known-bad records")
}
