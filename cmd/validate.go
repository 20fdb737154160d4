package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chewie69006/beem-ai/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file without starting the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: battery %s, planning at %02d:00\n",
			cfg.Beem.BatteryID, cfg.Engine.PlanningHour)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
