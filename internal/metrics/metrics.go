package metrics

import (
	"sync"
)

import (
	"github.com/prometheus/client_golang/prometheus"
)

import (
	"github.com/simplyvikram/koho-account-load-up/internal/types"
)

const namespace = "loads"

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Count of evaluated load requests by verdict.",
		},
		[]string{"verdict"},
	)
	ruleFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_failures_total",
			Help:      "Count of velocity rule failures by rule.",
		},
		[]string{"rule"},
	)
	batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of load requests per processed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	throttledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttled_requests_total",
			Help:      "Count of API requests refused before evaluation.",
		},
		[]string{"limiter"},
	)
)

var registerMetrics sync.Once

// Register adds all collectors to reg once per process.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(decisionsTotal)
		reg.MustRegister(ruleFailuresTotal)
		reg.MustRegister(batchSize)
		reg.MustRegister(throttledTotal)
	})
}

// ObserveDecision is a core.Observer; safe for concurrent use.
func ObserveDecision(d types.Decision) {
	decisionsTotal.WithLabelValues(d.Verdict.String()).Inc()
	if d.Verdict != types.VerdictRejected {
		return
	}
	for _, r := range d.Reasons {
		ruleFailuresTotal.WithLabelValues(r).Inc()
	}
}

func ObserveBatch(n int) {
	batchSize.Observe(float64(n))
}

// Throttled records a request refused by the named limiter.
func Throttled(limiter string) {
	throttledTotal.WithLabelValues(limiter).Inc()
}
