// Package metrics exports quality gate outcomes in the Prometheus text
// format so CI systems can scrape or archive them.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mlgate"

// GateResult is the outcome of one validation
type GateResult struct {
	RunID     string
	RMSE      float64
	Threshold float64
	TestRows  int
	Passed    bool
}

// GateExporter holds the gate gauges in a private registry
type GateExporter struct {
	registry  *prometheus.Registry
	rmse      *prometheus.GaugeVec
	threshold prometheus.Gauge
	passed    *prometheus.GaugeVec
	testRows  *prometheus.GaugeVec
	validated prometheus.Gauge
}

// NewGateExporter registers the gate metrics
func NewGateExporter() *GateExporter {
	e := &GateExporter{
		registry: prometheus.NewRegistry(),
		rmse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rmse",
			Help:      "Held-out RMSE recomputed by validation.",
		}, []string{"run_id"}),
		threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rmse_threshold",
			Help:      "Maximum RMSE accepted by the gate.",
		}),
		passed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "passed",
			Help:      "1 if the run passed the gate, 0 otherwise.",
		}, []string{"run_id"}),
		testRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "test_rows",
			Help:      "Rows in the held-out partition.",
		}, []string{"run_id"}),
		validated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "last_validation_timestamp_seconds",
			Help:      "Unix time of the last validation.",
		}),
	}
	e.registry.MustRegister(e.rmse, e.threshold, e.passed, e.testRows, e.validated)
	return e
}

// Registry exposes the underlying registry
func (e *GateExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Record sets the gauges from a gate result
func (e *GateExporter) Record(r GateResult) {
	e.rmse.WithLabelValues(r.RunID).Set(r.RMSE)
	e.threshold.Set(r.Threshold)
	e.testRows.WithLabelValues(r.RunID).Set(float64(r.TestRows))
	passed := 0.0
	if r.Passed {
		passed = 1
	}
	e.passed.WithLabelValues(r.RunID).Set(passed)
	e.validated.SetToCurrentTime()
}

// WriteFile writes the registry in text exposition format
func (e *GateExporter) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("write gate metrics to %s: %w", path, err)
	}
	return nil
}
