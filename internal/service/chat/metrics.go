package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roleplay_chat_turns_total",
			Help: "Chat turns by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	assistantDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roleplay_assistant_request_duration_seconds",
			Help:    "Duration of AI backend calls made for chat turns.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
		},
		[]string{"source"},
	)
	completedConversations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roleplay_conversations_completed_total",
			Help: "Conversations closed by the assistant completion marker.",
		},
	)
)

func init() {
	prometheus.MustRegister(turnsTotal, assistantDuration, completedConversations)
}

func observeTurn(source Source, outcome string) {
	turnsTotal.WithLabelValues(string(source), outcome).Inc()
}
