// Package prom records pipeline metrics with the Prometheus client and writes
// them to a node-exporter textfile after each run.
package prom

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// Recorder implements driven.MetricsRecorder on a private registry so the
// textfile only carries digest metrics.
type Recorder struct {
	registry *prometheus.Registry
	textfile string
	now      func() time.Time

	// Items leaving each stage in the last run.
	StageItems *prometheus.GaugeVec

	// Stage durations.
	StageDuration *prometheus.HistogramVec

	// Non-fatal errors by stage.
	StageErrors *prometheus.CounterVec

	// Semantic validation verdicts.
	Verdicts *prometheus.CounterVec

	// Unix time of the last flush.
	LastRun prometheus.Gauge
}

var _ driven.MetricsRecorder = (*Recorder)(nil)

// New creates a recorder. An empty textfile makes Flush a no-op.
func New(textfile string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		textfile: textfile,
		now:      time.Now,

		StageItems: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "digest_stage_items",
			Help: "Items leaving each pipeline stage in the last run",
		}, []string{"stage"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "digest_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"stage"}),

		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_stage_errors_total",
			Help: "Non-fatal errors by pipeline stage",
		}, []string{"stage"}),

		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_validation_verdicts_total",
			Help: "Semantic validation verdicts",
		}, []string{"verdict"}), // verdict: "YES", "NO", "INDETERMINATE"

		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "digest_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage records the item count leaving a stage and its duration.
func (r *Recorder) ObserveStage(stage string, count int, d time.Duration) {
	if r == nil {
		return
	}
	r.StageItems.WithLabelValues(stage).Set(float64(count))
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncError counts a non-fatal error in a stage.
func (r *Recorder) IncError(stage string) {
	if r != nil {
		r.StageErrors.WithLabelValues(stage).Inc()
	}
}

// ObserveVerdict counts a semantic validation verdict.
func (r *Recorder) ObserveVerdict(verdict string) {
	if r != nil {
		r.Verdicts.WithLabelValues(verdict).Inc()
	}
}

// Flush stamps the run time and writes the textfile atomically.
func (r *Recorder) Flush() error {
	if r == nil || r.textfile == "" {
		return nil
	}
	r.LastRun.Set(float64(r.now().Unix()))

	if err := os.MkdirAll(filepath.Dir(r.textfile), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
