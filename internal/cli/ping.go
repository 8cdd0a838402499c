package cli

import (
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify database connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Ping(cmd.Context())
	},
}
