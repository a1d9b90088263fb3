package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	rankingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reco_rankings_total",
			Help: "Ranking passes by outcome (ok, no_match, degraded).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(rankingsTotal)
}
