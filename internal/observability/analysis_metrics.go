package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisCollector exposes recompute and import Prometheus metrics.
type AnalysisCollector struct {
	gatherer prometheus.Gatherer

	RecomputeDuration prometheus.Histogram
	ImportsTotal      *prometheus.CounterVec
}

// NewAnalysisCollector registers analysis metrics against the provided registerer.
func NewAnalysisCollector(reg prometheus.Registerer) (*AnalysisCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	recompute := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_recompute_duration_seconds",
		Help:    "Duration of full link and robustness recomputes.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	recompute, err := registerHistogram(reg, recompute, "mesh_recompute_duration_seconds")
	if err != nil {
		return nil, err
	}

	imports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mesh_imports_total",
		Help: "Imports applied or rejected, labeled by source kind, mode, and outcome.",
	}, []string{"kind", "mode", "outcome"})
	imports, err = registerCounterVec(reg, imports, "mesh_imports_total")
	if err != nil {
		return nil, err
	}

	return &AnalysisCollector{
		gatherer:          gatherer,
		RecomputeDuration: recompute,
		ImportsTotal:      imports,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *AnalysisCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRecompute records one recompute duration.
func (c *AnalysisCollector) ObserveRecompute(d time.Duration) {
	if c == nil || c.RecomputeDuration == nil {
		return
	}
	c.RecomputeDuration.Observe(d.Seconds())
}

// RecordImport counts one import attempt.
func (c *AnalysisCollector) RecordImport(kind, mode string, ok bool) {
	if c == nil || c.ImportsTotal == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	if kind == "" {
		kind = "unknown"
	}
	c.ImportsTotal.WithLabelValues(kind, mode, outcome).Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
