package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the pipeline config and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadValid(cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", cfgPath)
		return nil
	},
}
