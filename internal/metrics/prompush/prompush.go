// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Collectors live in a private registry that Flush pushes
// under the run's job name.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ffietl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	rowCounter   *prometheus.CounterVec
	docCounter   *prometheus.CounterVec
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend constructs a backend pushing to gatewayURL under jobName
// ("ffietl" when empty).
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "ffietl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows written per output table.",
		}, []string{"table"}),
		docCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.DocumentsTotal,
			Help: "Documents processed by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.rowCounter, b.docCounter} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. The job label is dropped; the
// Pushgateway groups by job already.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rowCounter.WithLabelValues(labels["table"]).Add(delta)
	case metrics.DocumentsTotal:
		b.docCounter.WithLabelValues(labels["outcome"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
