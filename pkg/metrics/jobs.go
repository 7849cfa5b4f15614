package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics instruments background loops such as the outbox relay. A
// JobMetrics built without a registerer records nothing.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	items    *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ministeam_job_runs_total",
			Help: "Background job iterations that did work, by result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ministeam_job_duration_seconds",
			Help:    "Duration of background job iterations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ministeam_job_items_total",
			Help: "Items handled by background jobs, by outcome.",
		}, []string{"job", "outcome"}),
	}
	reg.MustRegister(m.runs, m.duration, m.items)
	return m
}

// ObserveRun records one iteration. A non-nil err counts as a failed run.
func (m *JobMetrics) ObserveRun(job string, elapsed time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	job = normalizeLabel(job)
	m.runs.WithLabelValues(job, result).Inc()
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// AddItems counts n items that ended with outcome. Non-positive n is ignored.
func (m *JobMetrics) AddItems(job, outcome string, n int) {
	if m == nil || m.items == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(normalizeLabel(job), normalizeLabel(outcome)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
