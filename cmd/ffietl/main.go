// Command ffietl converts FFI admin-export XML documents into relational
// tables.
//
// Usage:
//
//	ffietl run --config pipeline.yaml [-v]
//	ffietl validate --config pipeline.yaml
//	ffietl dump --out dir export.xml...
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// register all backends with the storage factory.
	_ "ffietl/internal/storage/all"
)

var (
	verbose bool
	cfgPath string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "ffietl",
	Short:         "Convert FFI XML exports into a relational schema",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "ffietl.yaml", "pipeline config (JSON or YAML)")
	rootCmd.AddCommand(runCmd, validateCmd, dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
