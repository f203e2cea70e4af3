package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for maintenance jobs.
type JobMetrics struct {
	duration         *prometheus.HistogramVec
	success          *prometheus.CounterVec
	failure          *prometheus.CounterVec
	outstandingCount prometheus.Gauge
	outstandingValue prometheus.Gauge
}

// NewJobMetrics registers the maintenance job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "careon_job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careon_job_success_total",
		Help: "Successful maintenance job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careon_job_failure_total",
		Help: "Failed maintenance job executions.",
	}, []string{"job"})
	outstandingCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "careon_outstanding_codes",
		Help: "Deposit codes minted but not yet redeemed.",
	})
	outstandingValue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "careon_outstanding_code_value",
		Help: "Total face value of unredeemed deposit codes.",
	})
	reg.MustRegister(duration, success, failure, outstandingCount, outstandingValue)
	return &JobMetrics{
		duration:         duration,
		success:          success,
		failure:          failure,
		outstandingCount: outstandingCount,
		outstandingValue: outstandingValue,
	}
}

// ObserveDuration records the duration for the named job.
func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// SetOutstanding publishes the unredeemed code totals.
func (j *JobMetrics) SetOutstanding(count int, value int64) {
	if j == nil || j.outstandingCount == nil {
		return
	}
	j.outstandingCount.Set(float64(count))
	j.outstandingValue.Set(float64(value))
}
