package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// DiagnosisMetrics contains Prometheus metrics for completed diagnoses.
type DiagnosisMetrics struct {
	registry *prometheus.Registry

	diagnosesTotal *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewDiagnosisMetrics creates and registers new diagnosis metrics
func NewDiagnosisMetrics(registry *prometheus.Registry) (*DiagnosisMetrics, error) {
	m := &DiagnosisMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DiagnosisMetrics) initMetrics() error {
	m.diagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnoses_total",
			Help: "Total number of diagnosis attempts",
		},
		[]string{"category", "success"},
	)

	m.collectors = []prometheus.Collector{
		m.diagnosesTotal,
	}
	return nil
}

// Describe implements the Collector interface
func (m *DiagnosisMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DiagnosisMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDiagnosis records a completed diagnosis attempt
func (m *DiagnosisMetrics) RecordDiagnosis(category string, success bool) {
	m.diagnosesTotal.WithLabelValues(category, strconv.FormatBool(success)).Inc()
}
