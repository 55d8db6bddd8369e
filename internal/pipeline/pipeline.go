// Package pipeline runs exports through the converter one at a time:
// ingest, stage, assemble, then write every output table in order.
//
// Assembly finishes in memory before the first write, so a document that
// fails to parse or transform leaves the destination untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"ffietl/internal/ffi"
	"ffietl/internal/frame"
	"ffietl/internal/metrics"
	"ffietl/internal/staging"
	"ffietl/internal/storage"
	"ffietl/internal/tables"
)

// Document outcomes, as reported to metrics.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Step names, as reported to metrics.
const (
	StepParse    = "parse"
	StepStage    = "stage"
	StepAssemble = "assemble"
	StepWrite    = "write"
)

// tableWriter is the part of *storage.Writer the runner needs.
type tableWriter interface {
	Write(ctx context.Context, f *frame.Frame) (storage.Result, error)
	AlreadyIngested(ctx context.Context, fileID, version string) (bool, error)
	ForgetIngested(ctx context.Context, fileID, version string) error
}

// Runner converts documents into a destination.
type Runner struct {
	Writer tableWriter
	Job    string
	Strict bool // reject documents lacking a required record type
	Force  bool // write documents file_info already records
	// DumpDir, when set, receives CSV dumps of each document's record,
	// staging and output tables under a directory named after the file.
	DumpDir string
	Logger  *zap.Logger
}

// Report summarizes one document.
type Report struct {
	Path     string
	FileID   string
	Version  string
	Size     int64
	Outcome  string
	Tables   []storage.Result
	Rows     int64
	Duration time.Duration
}

// New returns a Runner writing through w.
func New(w *storage.Writer, job string, logger *zap.Logger) *Runner {
	return &Runner{Writer: w, Job: job, Logger: logger}
}

// Run processes paths in order. A failed document is logged and reported
// and the run moves on; the returned error joins every document error.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Report, error) {
	reports := make([]Report, 0, len(paths))
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := r.Document(ctx, p)
		reports = append(reports, rep)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// Document converts the export at path.
func (r *Runner) Document(ctx context.Context, path string) (Report, error) {
	start := time.Now()
	rep := Report{Path: path, Outcome: OutcomeFailed}
	log := r.log().With(zap.String("file", path))

	rep, err := r.document(ctx, path, rep, log)
	rep.Duration = time.Since(start)
	metrics.RecordDocument(r.Job, rep.Outcome)
	if err != nil {
		log.Error("document failed", zap.Error(err))
		return rep, err
	}
	if rep.Outcome == OutcomeWritten {
		log.Info("document written",
			zap.Int("tables", len(rep.Tables)),
			zap.Int64("rows", rep.Rows),
			zap.Duration("took", rep.Duration),
		)
	}
	return rep, nil
}

func (r *Runner) document(ctx context.Context, path string, rep Report, log *zap.Logger) (Report, error) {
	var doc *ffi.Document
	err := r.step(StepParse, func() (err error) {
		doc, err = ffi.ParseFile(path, ffi.Options{Strict: r.Strict})
		return err
	})
	if err != nil {
		return rep, fmt.Errorf("parse: %w", err)
	}
	rep.FileID, rep.Version, rep.Size = doc.Fingerprint, doc.Version, doc.Size
	log.Info("document parsed",
		zap.String("admin_unit", doc.AdminUnit()),
		zap.String("version", doc.Version),
		zap.String("size", humanize.Bytes(uint64(doc.Size))),
		zap.Int("records", doc.Rows()),
	)
	for name, n := range doc.Skipped {
		log.Debug("record type not materialized", zap.String("type", name), zap.Int("count", n))
	}

	if !r.Force {
		done, err := r.Writer.AlreadyIngested(ctx, doc.Fingerprint, doc.Version)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", path, err)
		}
		if done {
			rep.Outcome = OutcomeSkipped
			log.Info("already ingested; skipping", zap.String("file_id", doc.Fingerprint))
			return rep, nil
		}
	}

	var set *staging.Set
	_ = r.step(StepStage, func() error {
		set = staging.Build(doc)
		return nil
	})

	var frames []*frame.Frame
	err = r.step(StepAssemble, func() (err error) {
		frames, err = tables.Assemble(doc, set)
		return err
	})
	if err != nil {
		return rep, fmt.Errorf("%s: %w", path, err)
	}

	if r.DumpDir != "" {
		if err := Dump(filepath.Join(r.DumpDir, DumpName(doc.Origin)), doc, set, frames); err != nil {
			log.Warn("dump failed", zap.Error(err))
		}
	}

	recorded := false
	err = r.step(StepWrite, func() error {
		for _, f := range frames {
			res, err := r.Writer.Write(ctx, f)
			if err != nil {
				return err
			}
			recorded = recorded || f.Name == tables.FileInfo
			rep.Tables = append(rep.Tables, res)
			rep.Rows += res.Rows
			metrics.RecordRows(r.Job, res.Table, res.Rows)
		}
		return nil
	})
	if err != nil {
		// A partly written document must not count as ingested.
		if recorded {
			if ferr := r.Writer.ForgetIngested(context.WithoutCancel(ctx), doc.Fingerprint, doc.Version); ferr != nil {
				log.Error("file_info row left behind; rerun with --force", zap.Error(ferr))
			}
		}
		return rep, fmt.Errorf("%s: %w", path, err)
	}
	rep.Outcome = OutcomeWritten
	return rep, nil
}

// step runs fn and records its duration and outcome.
func (r *Runner) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(r.Job, name, err, time.Since(start))
	return err
}

// Dump writes the record tables of doc, its staging tables (prefixed
// "staging_") and its output tables (prefixed "output_") as CSV under dir.
func Dump(dir string, doc *ffi.Document, set *staging.Set, frames []*frame.Frame) error {
	extra := set.Tables()
	for _, f := range frames {
		if t := f.Table(); t != nil {
			extra["output_"+f.Name] = t
		}
	}
	return doc.DumpCSV(dir, extra)
}

// DumpName is the dump directory name for an export path: its base name
// without extension.
func DumpName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (r *Runner) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
