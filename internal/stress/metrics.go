package stress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors a Harness reports to.
type Metrics struct {
	trialSeconds prometheus.Histogram
	acquisitions *prometheus.CounterVec
	violations   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		trialSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rrwlock",
			Subsystem: "stress",
			Name:      "trial_duration_seconds",
			Help:      "Wall time of a single trial.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		acquisitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rrwlock",
			Subsystem: "stress",
			Name:      "acquisitions_total",
			Help:      "Lock holds taken by contenders, by kind.",
		}, []string{"kind"}),
		violations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rrwlock",
			Subsystem: "stress",
			Name:      "violations_total",
			Help:      "Mutual exclusion violations observed.",
		}),
	}
}

const (
	kindRead    = "read"
	kindWrite   = "write"
	kindUpgrade = "upgrade"
)
