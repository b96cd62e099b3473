// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the jot service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// apiBuckets defines histogram buckets suited for CRUD request
// latencies, ranging from 1ms to 10s.
var apiBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jot_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jot_request_duration_seconds",
			Help:    "Request duration",
			Buckets: apiBuckets,
		},
		[]string{"method"},
	)

	// AuthAttemptsTotal counts authentication resolutions by credential
	// scheme and outcome (success, rejected, conflict, error).
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jot_auth_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"scheme", "outcome"},
	)

	// UsersProvisionedTotal counts accounts created by first-contact
	// Basic authentication.
	UsersProvisionedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jot_users_provisioned_total",
			Help: "Users auto-provisioned on first contact",
		},
	)

	// NotesCreatedTotal counts notes created.
	NotesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jot_notes_created_total",
			Help: "Notes created",
		},
	)

	// TokensRotatedTotal counts explicit token rotations.
	TokensRotatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jot_tokens_rotated_total",
			Help: "Token rotations",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthAttemptsTotal,
		UsersProvisionedTotal,
		NotesCreatedTotal,
		TokensRotatedTotal,
	)
}
