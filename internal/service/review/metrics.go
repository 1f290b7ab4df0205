package review

import "github.com/prometheus/client_golang/prometheus"

var reviewsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roleplay_reviews_total",
		Help: "Review requests by outcome (created, cached, failed).",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(reviewsTotal)
}
