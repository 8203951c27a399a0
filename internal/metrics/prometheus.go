package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"path", "status"},
	)

	WebhookOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Webhook processing outcomes",
		},
		[]string{"result"},
	)

	Latency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "request_latency_ms",
			Help:    "Request latency in ms",
			Buckets: []float64{100, 500},
		},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(WebhookOutcomes)
	prometheus.MustRegister(Latency)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// OutcomeRecorder adapts the webhook outcome counter to the ingestion
// pipeline's recorder interface.
type OutcomeRecorder struct{}

func (OutcomeRecorder) RecordOutcome(result string) {
	WebhookOutcomes.WithLabelValues(result).Inc()
}
