package poolcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reco_pool_cache_lookups_total",
			Help: "Pool cache lookups by tier and result (hit, miss, error).",
		},
		[]string{"tier", "result"},
	)

	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reco_pool_cache_writes_total",
			Help: "Pool cache writes by tier and result.",
		},
		[]string{"tier", "result"},
	)
)

func init() {
	prometheus.MustRegister(lookupsTotal, writesTotal)
}
