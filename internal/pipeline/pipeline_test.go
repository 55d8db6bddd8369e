package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ffietl/internal/ddl"
	"ffietl/internal/ffi"
	"ffietl/internal/frame"
	"ffietl/internal/metrics"
	"ffietl/internal/pipeline"
	"ffietl/internal/storage"
	"ffietl/internal/storage/sqlstore"
)

const export = "../ffi/testdata/export.xml"

// recorder collects document outcomes reported to metrics.
type recorder struct {
	mu       sync.Mutex
	outcomes []string
	rows     map[string]float64
}

func (r *recorder) IncCounter(name string, delta float64, l metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch name {
	case metrics.DocumentsTotal:
		r.outcomes = append(r.outcomes, l["outcome"])
	case metrics.RowsTotal:
		r.rows[l["table"]] += delta
	}
}
func (r *recorder) ObserveHistogram(string, float64, metrics.Labels) {}
func (r *recorder) Flush() error                                    { return nil }

func setup(t *testing.T) (*pipeline.Runner, *sqlstore.DB, *recorder) {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), ddl.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	rec := &recorder{rows: map[string]float64{}}
	metrics.SetBackend(rec)
	w := &storage.Writer{Conn: db, Logger: zap.NewNop()}
	return pipeline.New(w, "test", zap.NewNop()), db, rec
}

func count(t *testing.T, db *sqlstore.DB, table string) int64 {
	t.Helper()
	rows, err := db.Query(context.Background(), `SELECT COUNT(*) FROM "`+table+`"`)
	require.NoError(t, err)
	return rows[0][0].(int64)
}

// variant writes a copy of the sample export with an extra event-level
// attribute, so its event_detail table has one more column.
func variant(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(export)
	require.NoError(t, err)
	extra := `</SampleAttribute>
  <SampleAttribute>
    <SampleAtt_ID>101</SampleAtt_ID>
    <SampleAtt_FieldName>Slope</SampleAtt_FieldName>
    <SampleAtt_Method_ID>10</SampleAtt_Method_ID>
    <SampleAtt_DataType_GUID>DT-1</SampleAtt_DataType_GUID>
  </SampleAttribute>
  <SampleData>
    <SampleData_SampleEvent_GUID>SE-1</SampleData_SampleEvent_GUID>
    <SampleData_SampleAtt_ID>101</SampleData_SampleAtt_ID>
    <SampleData_SampleRow_ID>R-1</SampleData_SampleRow_ID>
    <SampleData_Value>12</SampleData_Value>
  </SampleData>`
	body := strings.Replace(string(raw), "</SampleAttribute>", extra, 1)
	path := filepath.Join(t.TempDir(), "export_2011.xml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDocumentWritesEveryTable(t *testing.T) {
	ctx := context.Background()
	r, db, rec := setup(t)

	rep, err := r.Document(ctx, export)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeWritten, rep.Outcome)
	assert.Equal(t, "10.2", rep.Version)
	assert.Len(t, rep.FileID, 64)

	var names []string
	for _, res := range rep.Tables {
		names = append(names, res.Table)
		assert.True(t, res.Created, res.Table)
	}
	assert.Equal(t, []string{
		"file_info", "admin_unit", "sampling_event", "monitoring_status", "project",
		"species", "plot", "project_plot", "event_detail", "cover_points",
	}, names)

	assert.Equal(t, int64(1), count(t, db, "plot"))
	assert.Equal(t, int64(1), count(t, db, "cover_points"))
	got, err := db.Query(ctx, `SELECT "plot_id", "event_id" FROM "sampling_event"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"YOSEM-FPIPO101", "YOSEM-FPIPO101-40342"}}, got)

	assert.Equal(t, []string{pipeline.OutcomeWritten}, rec.outcomes)
	assert.Equal(t, float64(1), rec.rows["plot"])
	assert.Equal(t, float64(rep.Rows), sum(rec.rows))
}

func sum(m map[string]float64) float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}

func TestDocumentSkipsAlreadyIngested(t *testing.T) {
	ctx := context.Background()
	r, db, rec := setup(t)

	_, err := r.Document(ctx, export)
	require.NoError(t, err)
	rep, err := r.Document(ctx, export)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSkipped, rep.Outcome)
	assert.Empty(t, rep.Tables)
	assert.Equal(t, int64(1), count(t, db, "file_info"))

	r.Force = true
	rep, err = r.Document(ctx, export)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeWritten, rep.Outcome)
	assert.Equal(t, int64(2), count(t, db, "file_info"))
	// Reference tables keep one row per key.
	assert.Equal(t, int64(1), count(t, db, "species"))
	assert.Equal(t, int64(1), count(t, db, "admin_unit"))
	assert.Equal(t, int64(1), count(t, db, "monitoring_status"))

	assert.Equal(t, []string{pipeline.OutcomeWritten, pipeline.OutcomeSkipped, pipeline.OutcomeWritten}, rec.outcomes)
}

// failingWriter fails the first write of one table.
type failingWriter struct {
	*storage.Writer
	table  string
	failed bool
}

func (w *failingWriter) Write(ctx context.Context, f *frame.Frame) (storage.Result, error) {
	if f.Name == w.table && !w.failed {
		w.failed = true
		return storage.Result{}, errors.New("connection reset")
	}
	return w.Writer.Write(ctx, f)
}

func TestFailedWriteForgetsDocument(t *testing.T) {
	ctx := context.Background()
	r, db, _ := setup(t)
	r.Writer = &failingWriter{Writer: r.Writer.(*storage.Writer), table: "plot"}

	rep, err := r.Document(ctx, export)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, pipeline.OutcomeFailed, rep.Outcome)
	assert.Equal(t, int64(0), count(t, db, "file_info"))

	rep, err = r.Document(ctx, export)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeWritten, rep.Outcome, "a partly written document is converted again")
	assert.Equal(t, int64(1), count(t, db, "file_info"))
	assert.Equal(t, int64(1), count(t, db, "plot"))
}

func TestRunEvolvesTablesAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	r, db, _ := setup(t)

	reps, err := r.Run(ctx, []string{export, variant(t)})
	require.NoError(t, err)
	require.Len(t, reps, 2)

	var detail storage.Result
	for _, res := range reps[1].Tables {
		if res.Table == "event_detail" {
			detail = res
		}
	}
	assert.True(t, detail.Evolved)
	assert.Equal(t, []string{"slope"}, detail.Added)

	got, err := db.Query(ctx, `SELECT "num_tran", "slope" FROM "event_detail" ORDER BY "slope"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(4), nil}, {int64(4), int64(12)}}, got)
	assert.Equal(t, int64(2), count(t, db, "file_info"))
}

func TestRunContinuesPastFailedDocument(t *testing.T) {
	ctx := context.Background()
	r, db, rec := setup(t)

	bad := filepath.Join(t.TempDir(), "bad.xml")
	require.NoError(t, os.WriteFile(bad, []byte("<FFIDataSet><oops>"), 0o644))

	reps, err := r.Run(ctx, []string{bad, export})
	require.Error(t, err)
	assert.ErrorIs(t, err, ffi.ErrNoNamespace)
	require.Len(t, reps, 2)
	assert.Equal(t, pipeline.OutcomeFailed, reps[0].Outcome)
	assert.Equal(t, pipeline.OutcomeWritten, reps[1].Outcome)
	assert.Equal(t, int64(1), count(t, db, "file_info"))
	assert.Equal(t, []string{pipeline.OutcomeFailed, pipeline.OutcomeWritten}, rec.outcomes)
}

func TestStrictRejectsIncompleteDocument(t *testing.T) {
	r, db, _ := setup(t)
	r.Strict = true

	// The sample has no LocalSpecies records.
	_, err := r.Document(context.Background(), export)
	require.ErrorIs(t, err, ffi.ErrMissingRecordType)

	cols, err := db.Columns(context.Background(), "file_info")
	require.NoError(t, err)
	assert.Nil(t, cols, "nothing is written for a rejected document")
}

func TestDumpWritesCSV(t *testing.T) {
	r, _, _ := setup(t)
	r.DumpDir = t.TempDir()

	_, err := r.Document(context.Background(), export)
	require.NoError(t, err)
	for _, name := range []string{"MacroPlot.csv", "staging_plot.csv", "output_plot.csv", "output_cover_points.csv"} {
		assert.FileExists(t, filepath.Join(r.DumpDir, "export", name))
	}
}

func TestDumpName(t *testing.T) {
	assert.Equal(t, "export_2011", pipeline.DumpName("/data/ffi/export_2011.xml"))
	assert.Equal(t, "plain", pipeline.DumpName("plain"))
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	r, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reps, err := r.Run(ctx, []string{export})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reps)
}
