// Invariants are conditions that must hold unless fig itself has a bug, e.g. a linked list node
// that is missing from its index, or a store configured with a non-positive capacity.
// A violation is logged, counted in `fig_invariants_total` and, in test-mode builds, panics.
// The caller still has to handle the broken case itself (early return, fallback value, ...).
//
// Do not raise invariants for conditions that depend on the outside world: a failing disk write or
// an unreachable S3 bucket is an error, not an invariant violation.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fig_invariants_total",
	Help: "The total number of invariant violations.",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

// RaiseInvariant records a violated invariant of `invariantType` inside `module`.
func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// GetInvariantCount returns how many times the invariant `invariantType` was raised in `module`.
func GetInvariantCount(module, invariantType string) int {
	return int(CounterValue(invariantsMetric.WithLabelValues(module, invariantType)))
}

// CounterValue reads the current value of a prometheus counter; it returns 0 if it can't be read.
func CounterValue(counter prometheus.Counter) float64 {
	metric := &promclient.Metric{}
	if err := counter.Write(metric); err != nil {
		slog.Error("Failed to read counter value.", "error", err)
		return 0
	}
	return metric.GetCounter().GetValue()
}

// GaugeValue reads the current value of a prometheus gauge; it returns 0 if it can't be read.
func GaugeValue(gauge prometheus.Gauge) float64 {
	metric := &promclient.Metric{}
	if err := gauge.Write(metric); err != nil {
		slog.Error("Failed to read gauge value.", "error", err)
		return 0
	}
	return metric.GetGauge().GetValue()
}
