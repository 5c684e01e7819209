// Package metrics exposes the Grid Engine's health gauges directly
// through prometheus/client_golang, registering gauges directly against a
// caller-supplied registry rather than through a framework wrapper.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauges groups the grid-health metrics updated by the Divergence Monitor
// and Spread Correction Engine. No HTTP exporter is wired here — scraping
// is an external collaborator's concern (see DESIGN.md).
type Gauges struct {
	DivergenceRMSPercent     *prometheus.GaugeVec
	SpreadOutOfToleranceStep *prometheus.GaugeVec
	BoundaryIndex            prometheus.Gauge
	CacheFunds               *prometheus.GaugeVec
	GridVersion              prometheus.Gauge
}

// NewGauges creates and registers the gauge set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// registry across parallel test runs.
func NewGauges(reg prometheus.Registerer) *Gauges {
	g := &Gauges{
		DivergenceRMSPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grid_divergence_rms_percent",
			Help: "Divergence metric per side: RMS percent when the RMS test flags the side, otherwise the cache/allocated ratio percent.",
		}, []string{"side"}),
		SpreadOutOfToleranceStep: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grid_spread_out_of_tolerance_steps",
			Help: "Out-of-spread step count computed by the Spread Correction Engine.",
		}, []string{"account"}),
		BoundaryIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_boundary_index",
			Help: "Current boundary index separating BUY from the spread zone.",
		}),
		CacheFunds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grid_cache_funds",
			Help: "Unallocated sub-unit remainder after integer quantization, per side.",
		}, []string{"side"}),
		GridVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grid_version",
			Help: "Monotonically increasing version stamp of the last committed grid.",
		}),
	}
	reg.MustRegister(g.DivergenceRMSPercent, g.SpreadOutOfToleranceStep, g.BoundaryIndex, g.CacheFunds, g.GridVersion)
	return g
}
