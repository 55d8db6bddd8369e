// Package metrics records operational metrics for conversion runs behind a
// small pluggable Backend.
//
// The global backend defaults to a no-op, so every Record call is safe when
// no metrics system is configured. Concrete backends live in subpackages
// (prompush, datadog) and are installed with SetBackend.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal      = "ffietl_step_total"
	StepDuration   = "ffietl_step_duration_seconds"
	RowsTotal      = "ffietl_rows_total"
	DocumentsTotal = "ffietl_documents_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStep counts one execution of a pipeline step (parse, stage,
// assemble, write) and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{"job": job, "step": step, "status": status(err)}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows counts rows written to an output table.
func RecordRows(job, table string, n int64) {
	if n <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(n), Labels{"job": job, "table": table})
}

// RecordDocument counts a processed document by outcome, e.g. "written",
// "skipped" or "failed".
func RecordDocument(job, outcome string) {
	backend.IncCounter(DocumentsTotal, 1, Labels{"job": job, "outcome": outcome})
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
