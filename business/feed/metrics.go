package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	pagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reco_pages_total",
			Help: "Feed pages served by kind (initial, more) and reason code.",
		},
		[]string{"kind", "reason"},
	)

	pageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reco_page_latency_seconds",
			Help:    "Time to assemble one feed page.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(pagesTotal, pageLatency)
}
