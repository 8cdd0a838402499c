package cli

import (
	"github.com/spf13/cobra"

	"merchant-metrics-pipeline/internal/app"
)

var (
	exportCSVPath string
	exportPNGPath string
	exportMaxDays int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export daily merchant metrics as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath: exportCSVPath,
			PNGPath: exportPNGPath,
			MaxDays: exportMaxDays,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntVar(&exportMaxDays, "max-days", 0, "Maximum days to plot (defaults to config)")
}
