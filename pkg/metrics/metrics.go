// Package metrics exposes Prometheus instrumentation for the query engine.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives engine measurements.
type Recorder interface {
	ObserveOperation(op, collection string, err error, elapsed time.Duration)
	ObservePlan(kind domain.PlanKind)
	AddDocsExamined(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, error, time.Duration) {}
func (nopRecorder) ObservePlan(domain.PlanKind)                           {}
func (nopRecorder) AddDocsExamined(int)                                   {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }

// Metrics records engine activity into Prometheus collectors.
type Metrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	plans        *prometheus.CounterVec
	docsExamined prometheus.Counter
}

// New creates the engine collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docquery",
				Name:      "operations_total",
				Help:      "Total number of engine operations",
			},
			[]string{"op", "collection", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docquery",
				Name:      "operation_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"op"},
		),
		plans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docquery",
				Name:      "query_plans_total",
				Help:      "Query plans chosen, by kind",
			},
			[]string{"plan"},
		),
		docsExamined: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "docquery",
				Name:      "documents_examined_total",
				Help:      "Candidate documents evaluated by queries",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.plans, m.docsExamined} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveOperation counts an operation and its latency.
func (m *Metrics) ObserveOperation(op, collection string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, collection, Status(err)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePlan counts a chosen plan.
func (m *Metrics) ObservePlan(kind domain.PlanKind) {
	m.plans.WithLabelValues(string(kind)).Inc()
}

// AddDocsExamined adds to the examined documents counter.
func (m *Metrics) AddDocsExamined(n int) {
	m.docsExamined.Add(float64(n))
}

// Status maps an operation error to a low-cardinality label.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	}
	return "error"
}
