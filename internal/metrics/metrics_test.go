package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	mu         sync.Mutex
	counters   []call
	histograms []call
	flushes    int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	SetBackend(fb)
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("job", "parse", nil, 2*time.Second)
	RecordStep("job", "write", errors.New("boom"), 500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	assert.Equal(t, call{StepTotal, 1, Labels{"job": "job", "step": "parse", "status": "success"}}, fb.counters[0])
	assert.Equal(t, "failure", fb.counters[1].labels["status"])

	require.Len(t, fb.histograms, 2)
	assert.Equal(t, StepDuration, fb.histograms[0].name)
	assert.InDelta(t, 2.0, fb.histograms[0].value, 1e-9)
	assert.InDelta(t, 0.5, fb.histograms[1].value, 1e-9)
}

func TestRecordRowsIgnoresNonPositive(t *testing.T) {
	fb := install(t)

	RecordRows("job", "plot", 0)
	RecordRows("job", "plot", -3)
	RecordRows("job", "plot", 7)

	require.Len(t, fb.counters, 1)
	assert.Equal(t, call{RowsTotal, 7, Labels{"job": "job", "table": "plot"}}, fb.counters[0])
}

func TestRecordDocumentAndFlush(t *testing.T) {
	fb := install(t)

	RecordDocument("job", "skipped")
	require.NoError(t, Flush())

	assert.Equal(t, []call{{DocumentsTotal, 1, Labels{"job": "job", "outcome": "skipped"}}}, fb.counters)
	assert.Equal(t, 1, fb.flushes)
}

func TestSetBackendNilKeepsCurrent(t *testing.T) {
	fb := install(t)
	SetBackend(nil)
	RecordDocument("job", "written")
	assert.Len(t, fb.counters, 1)
}
