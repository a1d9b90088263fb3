package scorer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reco_scorer_attempts_total",
			Help: "Scoring attempts by result (ok, error, malformed, rejected).",
		},
		[]string{"result"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reco_scorer_breaker_state",
			Help: "Scorer circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"breaker"},
	)
)

func init() {
	prometheus.MustRegister(attemptsTotal, breakerState)
}
