// Package metrics provides Prometheus instrumentation for the syncer.
//
// Metrics exposed:
//   - sensorsync_runs_total: Counter of sync runs by status (success, failed)
//   - sensorsync_run_duration_seconds: Histogram of run durations
//   - sensorsync_records_appended_total: Counter of records appended per sensor
//   - sensorsync_fetch_attempts_total: Counter of upstream attempts by outcome
//   - sensorsync_watermark_timestamp_seconds: Gauge of the watermark per sensor
//   - sensorsync_storage_errors_total: Counter of storage failures by operation
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	RecordsAppended    *prometheus.CounterVec
	FetchAttempts      *prometheus.CounterVec
	WatermarkTimestamp *prometheus.GaugeVec
	StorageErrors      *prometheus.CounterVec
}

// New registers the syncer metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorsync_runs_total",
			Help: "Total number of sync runs by status",
		}, []string{"status"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensorsync_run_duration_seconds",
			Help:    "Duration of sync runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		RecordsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorsync_records_appended_total",
			Help: "Total number of records appended to sensor logs",
		}, []string{"sensor"}),

		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorsync_fetch_attempts_total",
			Help: "Total number of upstream fetch attempts by outcome",
		}, []string{"outcome"}),

		WatermarkTimestamp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sensorsync_watermark_timestamp_seconds",
			Help: "Timestamp of the newest stored reading per sensor",
		}, []string{"sensor"}),

		StorageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorsync_storage_errors_total",
			Help: "Total number of storage failures by operation",
		}, []string{"op"}),
	}
}

func (m *Metrics) RecordRun(status string, seconds float64) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(seconds)
}

func (m *Metrics) RecordAppended(sensor string, n int) {
	m.RecordsAppended.WithLabelValues(sensor).Add(float64(n))
}

// RecordFetch splits the attempts of one fetch by outcome.
func (m *Metrics) RecordFetch(attempts, rateLimited int, ok bool) {
	failed := attempts - rateLimited
	if ok {
		m.FetchAttempts.WithLabelValues(OutcomeSuccess).Inc()
		failed--
	}
	if rateLimited > 0 {
		m.FetchAttempts.WithLabelValues(OutcomeRateLimited).Add(float64(rateLimited))
	}
	if failed > 0 {
		m.FetchAttempts.WithLabelValues(OutcomeError).Add(float64(failed))
	}
}

func (m *Metrics) SetWatermark(sensor string, ts int64) {
	m.WatermarkTimestamp.WithLabelValues(sensor).Set(float64(ts))
}

func (m *Metrics) RecordStorageError(op string) {
	m.StorageErrors.WithLabelValues(op).Inc()
}
