// Package observability defines the Prometheus metrics exposed on /metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts generation requests by admission outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagebot_requests_total",
			Help: "Total number of image generation requests by outcome",
		},
		[]string{"outcome"},
	)

	// UpdatesReceived counts incoming chat updates.
	UpdatesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagebot_updates_received_total",
			Help: "Total number of chat updates received from the messaging platform",
		},
	)

	// LedgerAppendFailures counts failed durable writes to the usage ledger.
	LedgerAppendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagebot_ledger_append_failures_total",
			Help: "Total number of failed usage ledger writes",
		},
	)

	// ProviderRequestDuration tracks latency of upstream API calls.
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagebot_provider_request_duration_seconds",
			Help:    "Duration of upstream provider API calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"service", "operation"},
	)
)

// ObserveProviderCall records the duration of one upstream call. Use with
// defer: defer ObserveProviderCall("openai", "generate", time.Now()).
func ObserveProviderCall(service, operation string, start time.Time) {
	ProviderRequestDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}
