package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ffietl/internal/config"
	"ffietl/internal/datasource/file"
	"ffietl/internal/ddl"
	"ffietl/internal/metrics"
	"ffietl/internal/metrics/datadog"
	"ffietl/internal/metrics/prompush"
	"ffietl/internal/pipeline"
	"ffietl/internal/storage"
	"ffietl/internal/storage/postgres"
)

var (
	forceFlag  bool
	strictFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run [export.xml...]",
	Short: "Convert exports and write them to the configured database",
	Long: `Reads every export named by source.dir / source.files (plus any given as
arguments), converts it and appends the output tables to the destination.
Tables are created on first use and rebuilt when a document brings new
columns. Documents already recorded in file_info are skipped unless --force.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&forceFlag, "force", false, "re-ingest documents already recorded in file_info")
	runCmd.Flags().BoolVar(&strictFlag, "strict", false, "reject documents lacking a required record type")
}

// openStorage is a test seam for the storage factory.
var openStorage = storage.Open

func runRun(cmd *cobra.Command, args []string) error {
	p, err := loadValid(cfgPath)
	if err != nil {
		return err
	}
	p.Source.Files = append(p.Source.Files, args...)
	if forceFlag {
		p.Ingest.Force = true
	}
	if strictFlag {
		p.Ingest.Strict = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.With(zap.String("job", p.Job), zap.String("run_id", uuid.NewString()))
	closeMetrics, err := setupMetrics(p.Job, p.Metrics, log)
	if err != nil {
		return err
	}
	defer closeMetrics()

	paths, err := file.Local{Dir: p.Source.Dir, Pattern: p.Source.Pattern, Files: p.Source.Files}.List(ctx)
	if err != nil {
		return fmt.Errorf("list exports: %w", err)
	}
	if len(paths) == 0 {
		log.Warn("no exports found", zap.String("dir", p.Source.Dir), zap.String("pattern", p.Source.Pattern))
		return nil
	}

	conn, err := openStorage(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DSN})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer conn.Close(context.Background())

	w := &storage.Writer{Conn: conn, Schema: p.Storage.Schema, Logger: log}
	if conn.Dialect() == ddl.Postgres {
		if p.Storage.BootstrapDependencies {
			if err := postgres.EnsureDepsFunctions(ctx, conn); err != nil {
				return err
			}
		}
		if p.Storage.PreserveDependencies {
			w.Hooks = postgres.DepsHooks{}
		}
	}

	r := pipeline.New(w, p.Job, log)
	r.Strict, r.Force, r.DumpDir = p.Ingest.Strict, p.Ingest.Force, p.Debug.DumpDir

	start := time.Now()
	log.Info("run started", zap.Int("documents", len(paths)), zap.String("storage", p.Storage.Kind))
	reports, runErr := r.Run(ctx, paths)
	summarize(log, reports, time.Since(start))
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

func loadValid(path string) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return p, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return p, fmt.Errorf("configuration is invalid: %s", path)
	}
	return p, nil
}

// setupMetrics installs the configured backend and returns a func that
// flushes it. A backend that fails to start leaves metrics disabled.
func setupMetrics(job string, m config.Metrics, log *zap.Logger) (func(), error) {
	nop := func() {}
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(job, m.PushgatewayURL)
		if err != nil {
			log.Warn("metrics: prom push backend unavailable; using nop", zap.Error(err))
			return nop, nil
		}
		metrics.SetBackend(b)
		log.Debug("metrics enabled", zap.String("backend", m.Backend), zap.String("url", m.PushgatewayURL))
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics: flush error", zap.Error(err))
			}
		}, nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  m.Namespace,
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Warn("metrics: datadog backend unavailable; using nop", zap.Error(err))
			return nop, nil
		}
		metrics.SetBackend(b)
		log.Debug("metrics enabled", zap.String("backend", m.Backend), zap.String("addr", m.DatadogAddr))
		return func() {
			if err := errors.Join(metrics.Flush(), b.Close()); err != nil {
				log.Warn("metrics: flush error", zap.Error(err))
			}
		}, nil
	case "", "none":
		return nop, nil
	}
	log.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", m.Backend))
	return nop, nil
}

func summarize(log *zap.Logger, reports []pipeline.Report, took time.Duration) {
	var written, skipped, failed int
	var rows int64
	for _, rep := range reports {
		switch rep.Outcome {
		case pipeline.OutcomeWritten:
			written++
		case pipeline.OutcomeSkipped:
			skipped++
		default:
			failed++
		}
		rows += rep.Rows
	}
	log.Info("run finished",
		zap.Int("written", written),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int64("rows", rows),
		zap.Duration("took", took.Truncate(time.Millisecond)),
	)
}
