package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// GateDecisionTotal counts abuse-gate outcomes: allowed, challenged,
	// challenge_passed, blocked, strict_rejected, honeypot.
	GateDecisionTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_gate_decisions_total",
			Help: "Total number of abuse-gate decisions by outcome",
		},
		[]string{"decision"},
	)

	WebhookAuthTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_webhook_auth_total",
			Help: "Total number of webhook authentication attempts by result",
		},
		[]string{"result"},
	)

	RateLimitTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_rate_limit_total",
			Help: "Total number of rate-limit checks by result",
		},
		[]string{"result"},
	)

	BotScoreObserved = promauto.With(registerer).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shield_bot_score",
			Help:    "Distribution of computed bot suspicion scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

// Handler exposes the private registry for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
