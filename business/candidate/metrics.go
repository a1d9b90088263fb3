package candidate

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	catalogQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reco_catalog_queries_total",
			Help: "Count of per-category catalog queries by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(catalogQueriesTotal)
}
