package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pagesync collectors on an isolated registry so runs and
// tests never touch the global default registry.
type Metrics struct {
	Registry *prometheus.Registry

	EntriesTotal           *prometheus.CounterVec
	FetchDurationSeconds   prometheus.Histogram
	PublishDurationSeconds *prometheus.HistogramVec
	RunsTotal              *prometheus.CounterVec
	LastRunTimestamp       prometheus.Gauge
	LastRunDuration        prometheus.Gauge
}

// New creates a Metrics instance with every collector registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		EntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesync_entries_total",
				Help: "Manifest entries processed, by final sync state.",
			},
			[]string{"state"},
		),
		FetchDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagesync_fetch_duration_seconds",
				Help:    "Time spent fetching a Markdown source.",
				Buckets: prometheus.DefBuckets,
			},
		),
		PublishDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagesync_publish_duration_seconds",
				Help:    "Time spent publishing a page, by outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesync_runs_total",
				Help: "Sync runs, by result.",
			},
			[]string{"result"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagesync_last_run_timestamp_seconds",
				Help: "Unix time the last sync run finished.",
			},
		),
		LastRunDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagesync_last_run_duration_seconds",
				Help: "Wall time of the last sync run.",
			},
		),
	}

	reg.MustRegister(
		m.EntriesTotal,
		m.FetchDurationSeconds,
		m.PublishDurationSeconds,
		m.RunsTotal,
		m.LastRunTimestamp,
		m.LastRunDuration,
	)
	return m
}

// ObserveEntry counts one entry in its final state.
func (m *Metrics) ObserveEntry(state string) {
	if m == nil {
		return
	}
	m.EntriesTotal.WithLabelValues(state).Inc()
}

// ObserveFetch records the duration of a source fetch.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDurationSeconds.Observe(d.Seconds())
}

// ObservePublish records the duration of a publish call.
func (m *Metrics) ObservePublish(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PublishDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(result string, finished time.Time, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	m.LastRunDuration.Set(d.Seconds())
}

// WriteTextfile writes every collected metric to path in the Prometheus text
// format, suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
