package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as the outcome label.
const (
	CheckoutOutcomeCompleted = "completed"
	CheckoutOutcomeEmptyCart = "empty_cart"
	CheckoutOutcomeLocked    = "locked"
	CheckoutOutcomeRejected  = "rejected"
	CheckoutOutcomeFailed    = "failed"
)

// CheckoutMetrics instruments the cart to library conversion.
type CheckoutMetrics struct {
	total    *prometheus.CounterVec
	duration prometheus.Histogram
	items    prometheus.Histogram
}

// NewCheckoutMetrics registers checkout metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ministeam_checkout_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ministeam_checkout_duration_seconds",
		Help:    "Time spent inside the checkout transaction.",
		Buckets: prometheus.DefBuckets,
	})
	items := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ministeam_checkout_items",
		Help:    "Games per completed checkout.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})
	reg.MustRegister(total, duration, items)
	return &CheckoutMetrics{total: total, duration: duration, items: items}
}

// Observe records one checkout attempt.
func (c *CheckoutMetrics) Observe(outcome string, elapsed time.Duration, itemCount int) {
	if c == nil || c.total == nil {
		return
	}
	c.total.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome != CheckoutOutcomeCompleted {
		return
	}
	c.duration.Observe(elapsed.Seconds())
	c.items.Observe(float64(itemCount))
}
