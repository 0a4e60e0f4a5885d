// Package metrics exposes run counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tidyloom"

// Recorder owns a private registry so tests and the CLI never touch the
// global default one.
type Recorder struct {
	reg         *prometheus.Registry
	runs        *prometheus.CounterVec
	steps       *prometheus.CounterVec
	rowsIn      prometheus.Counter
	rowsOut     prometheus.Counter
	rowsRemoved prometheus.Counter
	outliers    prometheus.Counter
	duration    prometheus.Histogram
}

// New builds a recorder. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Cleaning runs by outcome.",
		}, []string{"status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed cleaning steps by name.",
		}, []string{"step"}),
		rowsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_in_total",
			Help:      "Rows read into completed runs.",
		}),
		rowsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_out_total",
			Help:      "Rows written by completed runs.",
		}),
		rowsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_removed_total",
			Help:      "Duplicate rows removed.",
		}),
		outliers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outlier_columns_total",
			Help:      "Outlier indicator columns added.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	r.reg.MustRegister(r.runs, r.steps, r.rowsIn, r.rowsOut, r.rowsRemoved, r.outliers, r.duration)
	if withRuntime {
		r.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return r
}

// ObserveRun records a completed run.
func (r *Recorder) ObserveRun(res *clean.Result) {
	if r == nil || res == nil {
		return
	}
	r.runs.WithLabelValues("completed").Inc()
	for _, s := range res.Steps {
		r.steps.WithLabelValues(string(s)).Inc()
	}
	r.rowsIn.Add(float64(res.RowsIn))
	r.rowsOut.Add(float64(res.RowsOut))
	r.rowsRemoved.Add(float64(res.RowsRemoved))
	r.outliers.Add(float64(len(res.OutlierColumns)))
	r.duration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
}

// ObserveFailure records a run that did not complete.
func (r *Recorder) ObserveFailure() {
	if r == nil {
		return
	}
	r.runs.WithLabelValues("failed").Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// WriteTextfile writes the registry for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
