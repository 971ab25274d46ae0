// Package metrics counts what a run emitted and skipped.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the set of run counters. The zero value is not usable; use
// NewRecorder.
type Recorder struct {
	registry *prometheus.Registry
	emitted  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	batches  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewRecorder registers the counters on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cda2fhir",
			Name:      "resources_emitted_total",
			Help:      "Resources handed to the output writer.",
		}, []string{"family", "resource_type"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cda2fhir",
			Name:      "records_skipped_total",
			Help:      "Source records that produced no resource.",
		}, []string{"family", "reason"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cda2fhir",
			Name:      "batches_total",
			Help:      "Batches loaded per family.",
		}, []string{"family"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cda2fhir",
			Name:      "family_failures_total",
			Help:      "Families that ended in FAILED.",
		}, []string{"family"}),
	}
	r.registry.MustRegister(r.emitted, r.skipped, r.batches, r.failures)
	return r
}

func (r *Recorder) Emitted(family, resourceType string, n int) {
	if n <= 0 {
		return
	}
	r.emitted.WithLabelValues(family, resourceType).Add(float64(n))
}

func (r *Recorder) Skipped(family, reason string) {
	r.skipped.WithLabelValues(family, reason).Inc()
}

func (r *Recorder) Batch(family string) {
	r.batches.WithLabelValues(family).Inc()
}

func (r *Recorder) Failed(family string) {
	r.failures.WithLabelValues(family).Inc()
}

// Registry exposes the private registry, e.g. for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteToTextfile writes all counters in the text exposition format.
func (r *Recorder) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
