package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "schemaclone"

// Phases timed by the commands
const (
	PhaseLift      = "lift"
	PhaseTransform = "transform"
	PhaseProvision = "provision"
	PhaseMigrate   = "migrate"
)

// Metrics collects per-process timings and counters on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	phaseDuration   *prometheus.HistogramVec
	provisionSteps  *prometheus.CounterVec
	transformFields *prometheus.CounterVec

	now func() time.Time
}

// NewMetrics returns a Metrics with its collectors registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of each command phase in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		provisionSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provision_steps_total",
				Help:      "Provisioning steps run, by step and status",
			},
			[]string{"step", "status"},
		),
		transformFields: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transform_fields_total",
				Help:      "Changelog fields changed by the transformer, by action",
			},
			[]string{"action"},
		),
		now: time.Now,
	}
	m.registry.MustRegister(m.phaseDuration, m.provisionSteps, m.transformFields)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Time starts timing phase. The returned func stops the timer, records the
// observation and returns the elapsed time.
func (m *Metrics) Time(phase string) func() time.Duration {
	if m == nil {
		start := time.Now()
		return func() time.Duration { return time.Since(start) }
	}
	start := m.now()
	return func() time.Duration {
		elapsed := m.now().Sub(start)
		m.ObservePhase(phase, elapsed)
		return elapsed
	}
}

// ObservePhase records one run of phase
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordStep counts one provisioning step with its status
func (m *Metrics) RecordStep(step, status string) {
	if m == nil {
		return
	}
	m.provisionSteps.WithLabelValues(step, status).Inc()
}

// RecordTransform counts dropped and rewritten fields
func (m *Metrics) RecordTransform(dropped, rewritten int) {
	if m == nil {
		return
	}
	m.transformFields.WithLabelValues("drop").Add(float64(dropped))
	m.transformFields.WithLabelValues("rewrite").Add(float64(rewritten))
}

// PhaseSummary is the count and mean duration of one phase.
type PhaseSummary struct {
	Phase string
	Count uint64
	Total time.Duration
}

// Mean is the average duration, zero when nothing was observed
func (s PhaseSummary) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s PhaseSummary) String() string {
	return fmt.Sprintf("%s: mean %s over %d events", s.Phase, s.Mean().Round(time.Millisecond), s.Count)
}

// Summary reads the histogram for phase back from the registry.
func (m *Metrics) Summary(phase string) PhaseSummary {
	summary := PhaseSummary{Phase: phase}
	if m == nil {
		return summary
	}

	families, err := m.registry.Gather()
	if err != nil {
		return summary
	}
	name := prometheus.BuildFQName(namespace, "", "phase_duration_seconds")
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelValue(metric, "phase") != phase {
				continue
			}
			h := metric.GetHistogram()
			summary.Count = h.GetSampleCount()
			summary.Total = time.Duration(h.GetSampleSum() * float64(time.Second))
		}
	}
	return summary
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

// WriteToTextfile writes the registry in the text exposition format, for
// the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
