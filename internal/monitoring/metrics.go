// Package monitoring records run metrics and raises alerts when a run
// degrades past configured thresholds.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/hazardmap/powergrid/internal/model"
)

const namespace = "powergrid"

// Metrics holds the Prometheus collectors for one pipeline process. All
// methods are safe on a nil *Metrics so stages can run unobserved.
type Metrics struct {
	Records        *prometheus.CounterVec   // labels: source=<matched_source>
	MergeEvents    *prometheus.CounterVec   // labels: kind={filled,corrected,added,duplicate,rejected,carried}
	Foreign        *prometheus.CounterVec   // labels: reason
	RemoteRequests *prometheus.CounterVec   // labels: service, outcome={ok,transient,permanent,circuit_open}
	StageDuration  *prometheus.HistogramVec // labels: stage
}

// NewMetrics creates the collectors and registers them on reg. Tests pass a
// fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Output capacity records by matched source.",
		}, []string{"source"}),
		MergeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_events_total",
			Help:      "Record merger actions by kind.",
		}, []string{"kind"}),
		Foreign: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geofence_foreign_total",
			Help:      "Records and footprints classified as foreign, by reason.",
		}, []string{"reason"}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Address-search calls by service and outcome.",
		}, []string{"service", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		}, []string{"stage"}),
	}
	reg.MustRegister(m.Records, m.MergeEvents, m.Foreign, m.RemoteRequests, m.StageDuration)
	return m
}

// ObserveRecords counts records by matched source.
func (m *Metrics) ObserveRecords(records []model.CapacityRecord) {
	if m == nil {
		return
	}
	for _, r := range records {
		m.Records.WithLabelValues(string(r.MatchedSource)).Inc()
	}
}

// AddMergeEvents adds n events of kind. Zero counts still create the series.
func (m *Metrics) AddMergeEvents(kind string, n int) {
	if m == nil {
		return
	}
	m.MergeEvents.WithLabelValues(kind).Add(float64(n))
}

// AddForeign adds the per-reason foreign counts.
func (m *Metrics) AddForeign(reasons map[string]int) {
	if m == nil {
		return
	}
	for reason, n := range reasons {
		m.Foreign.WithLabelValues(reason).Add(float64(n))
	}
}

// RemoteRequest counts one remote call. Its signature matches
// cascade.RemoteHook.
func (m *Metrics) RemoteRequest(service, outcome string) {
	if m == nil {
		return
	}
	m.RemoteRequests.WithLabelValues(service, outcome).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes everything g gathers in the text exposition format,
// for node_exporter's textfile collector. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return eris.Wrapf(prometheus.WriteToTextfile(path, g), "monitoring: write %s", path)
}
