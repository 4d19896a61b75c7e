// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	scoresRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vaskular_scores_recorded_total",
		Help: "Score records successfully appended.",
	})

	recoveryPlans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaskular_recovery_plans_total",
		Help: "Recovery plan requests by outcome.",
	}, []string{"outcome"})

	advisorLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaskular_advisor_request_seconds",
		Help:    "Round trip time of completion requests, including failures.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})
)

func init() {
	prometheus.MustRegister(scoresRecorded, recoveryPlans, advisorLatency)
}

// Recovery plan outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeAdvisor  = "advisor_error"
	OutcomeStorage  = "storage_error"
)

func IncScoresRecorded() { scoresRecorded.Inc() }

func IncRecoveryPlan(outcome string) { recoveryPlans.WithLabelValues(outcome).Inc() }

func ObserveAdvisorLatency(d time.Duration) { advisorLatency.Observe(d.Seconds()) }
