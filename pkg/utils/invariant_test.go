package utils

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestRaiseInvariant(t *testing.T) {
	invariantsMetric.Reset() // Start from a clean state.
	RaiseInvariant("invariant", "test", "This is a test invariant violation.")
	RaiseInvariant("invariant", "test", "This is another test invariant violation.")
	assert.Equal(t, 2, GetInvariantCount("invariant" /*module*/, "test" /*invariantType*/))
	assert.Zero(t, GetInvariantCount("invariant" /*module*/, "other" /*invariantType*/))
}

func TestGaugeValue(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "Test gauge."})
	gauge.Set(42)
	assert.Equal(t, float64(42), GaugeValue(gauge))
}
