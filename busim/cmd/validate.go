package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/busim/system"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a system description and print its address map",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cfg.Trace.SQLite = ""

		s, err := system.Build(cfg, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d device(s), at most %d ticks per access\n",
			len(cfg.Devices), cfg.Clock.MaxTicksPerAccess)
		for _, line := range s.AddressMap() {
			fmt.Fprintln(out, line)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
