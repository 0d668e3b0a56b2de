package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketdesk_http_requests_total",
			Help: "HTTP requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	ticketMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketdesk_ticket_mutations_total",
			Help: "Ticket mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	domainErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketdesk_domain_errors_total",
			Help: "Errors surfaced to callers by code",
		},
		[]string{"path", "method", "code"},
	)
)

// RecordRequest increments request counters and observes latency.
func RecordRequest(path, method string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(path, method, statusLabel(status)).Inc()
	httpDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments the error counter for a surfaced DomainError code.
func RecordError(path, method, code string) {
	domainErrors.WithLabelValues(path, method, code).Inc()
}

// RecordMutation counts a coordinator mutation attempt.
func RecordMutation(operation, outcome string) {
	ticketMutations.WithLabelValues(operation, outcome).Inc()
}

func statusLabel(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
