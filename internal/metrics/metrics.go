package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_proxy_requests_total",
			Help: "Total number of credential proxy requests",
		},
		[]string{"method", "route", "status"},
	)

	ProxyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "avatarchat_proxy_request_duration_seconds",
			Help: "Credential proxy request duration in seconds",
		},
		[]string{"method", "route"},
	)

	VendorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_vendor_calls_total",
			Help: "Total number of vendor REST calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_session_transitions_total",
			Help: "Avatar session lifecycle transitions",
		},
		[]string{"state", "reason"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avatarchat_active_sessions",
			Help: "Number of active avatar sessions owned by this process",
		},
	)

	Utterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatarchat_utterances_total",
			Help: "Submitted utterances by outcome",
		},
		[]string{"outcome"},
	)
)
