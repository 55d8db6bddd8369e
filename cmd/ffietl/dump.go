package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ffietl/internal/ffi"
	"ffietl/internal/pipeline"
	"ffietl/internal/staging"
	"ffietl/internal/tables"
)

var dumpOut string

var dumpCmd = &cobra.Command{
	Use:   "dump --out dir export.xml...",
	Short: "Write the record, staging and output tables of exports as CSV",
	Long: `Converts each export in memory and writes every intermediate table to
<out>/<export name>/<table>.csv without touching a database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpOut, "out", "o", "dump", "output directory")
}

func runDump(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		doc, err := ffi.ParseFile(path, ffi.Options{})
		if err != nil {
			return err
		}
		set := staging.Build(doc)
		frames, err := tables.Assemble(doc, set)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		dir := filepath.Join(dumpOut, pipeline.DumpName(path))
		if err := pipeline.Dump(dir, doc, set, frames); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Info("dumped", zap.String("file", path), zap.String("dir", dir))
	}
	return nil
}
