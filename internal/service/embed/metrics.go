package embed

import "github.com/prometheus/client_golang/prometheus"

var embedDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "roleplay_embed_authorizations_total",
		Help: "Embed authorization decisions by reason.",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(embedDecisions)
}
