// Package metrics records per-run pipeline measurements in a private
// Prometheus registry and writes them out in the node-exporter textfile
// format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/wardmap/aggregate"
)

const namespace = "wardmap"

// Run results used as the runs_total label.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder holds the run metrics. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	featuresLoaded *prometheus.GaugeVec
	joinRecords    prometheus.Gauge
	joinDropped    prometheus.Gauge
	population     *prometheus.GaugeVec
	stageDuration  *prometheus.HistogramVec
	runs           *prometheus.CounterVec
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		featuresLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "features_loaded",
				Help:      "Features read from each input layer in the last run.",
			},
			[]string{"layer"},
		),
		joinRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "join_records",
			Help:      "Rows in the joined table of the last run.",
		}),
		joinDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "join_dropped",
			Help:      "Wards whose point fell inside no county in the last run.",
		}),
		population: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "population",
				Help:      "Summed ward population per county in the last run.",
			},
			[]string{"county"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by result.",
			},
			[]string{"result"},
		),
	}
	r.registry = prometheus.NewRegistry()
	r.registry.MustRegister(
		r.featuresLoaded,
		r.joinRecords,
		r.joinDropped,
		r.population,
		r.stageDuration,
		r.runs,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// FeaturesLoaded records the size of an input layer.
func (r *Recorder) FeaturesLoaded(layer string, n int) {
	if r == nil {
		return
	}
	r.featuresLoaded.WithLabelValues(layer).Set(float64(n))
}

// JoinResult records the joined row count and how many right-hand features
// matched nothing.
func (r *Recorder) JoinResult(records, dropped int) {
	if r == nil {
		return
	}
	r.joinRecords.Set(float64(records))
	r.joinDropped.Set(float64(dropped))
}

// Population replaces the per-county gauges with the rows of a
// single-index series.
func (r *Recorder) Population(s *aggregate.Series) {
	if r == nil || s == nil {
		return
	}
	r.population.Reset()
	for _, row := range s.Rows {
		if len(row.Keys) == 0 {
			continue
		}
		r.population.WithLabelValues(row.Keys[0]).Set(row.Value)
	}
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RunFinished counts a run as success or error.
func (r *Recorder) RunFinished(err error) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	r.runs.WithLabelValues(result).Inc()
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
