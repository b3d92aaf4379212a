// Package metrics records pipeline counters and writes them in the
// Prometheus text format next to the manifest.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slidevoice"

// Recorder holds the metrics of one pipeline process. Each Recorder has its
// own registry so projects and tests never share counters. A nil *Recorder
// records nothing.
type Recorder struct {
	reg *prometheus.Registry

	slidesTotal     *prometheus.CounterVec
	slideDuration   *prometheus.HistogramVec
	stageRunsTotal  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	capabilityCalls *prometheus.CounterVec
}

// NewRecorder creates a Recorder. src may be nil; when set, the manifest is
// read at gather time for the artifact gauges.
func NewRecorder(src DocumentSource) *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		slidesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slides_processed_total",
			Help:      "Slides handled by a stage, by outcome.",
		}, []string{"stage", "outcome"}),
		slideDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slide_duration_seconds",
			Help:      "Time spent on one slide in a stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8), // 50ms → ~14min
		}, []string{"stage"}),
		stageRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Stage invocations, by result.",
		}, []string{"stage", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of one stage invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
		capabilityCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_calls_total",
			Help:      "Calls into conversion, speech-to-text, translation and synthesis backends.",
		}, []string{"stage", "backend"}),
	}
	r.reg.MustRegister(
		r.slidesTotal,
		r.slideDuration,
		r.stageRunsTotal,
		r.stageDuration,
		r.capabilityCalls,
	)
	if src != nil {
		r.reg.MustRegister(NewCollector(src))
	}
	return r
}

// Slide records the outcome of one slide.
func (r *Recorder) Slide(stage, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.slidesTotal.WithLabelValues(stage, outcome).Inc()
	if d > 0 {
		r.slideDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// CapabilityCall counts one backend invocation.
func (r *Recorder) CapabilityCall(stage, backend string) {
	if r == nil {
		return
	}
	r.capabilityCalls.WithLabelValues(stage, backend).Inc()
}

// Stage records a finished stage invocation. result is "ok", "partial",
// "cancelled" or "error".
func (r *Recorder) Stage(stage, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageRunsTotal.WithLabelValues(stage, result).Inc()
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// WriteTextfile writes all metrics to path in the node_exporter textfile
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
