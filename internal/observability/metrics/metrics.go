package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of access tokens issued or refreshed.",
		},
		[]string{"service", "flow", "result"},
	)

	DevicesRegisteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_devices_registered_total",
			Help: "Total number of device registration attempts.",
		},
		[]string{"service", "result"},
	)

	RememberTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_remember_tokens_total",
			Help: "Total number of two-factor remember token operations.",
		},
		[]string{"service", "op", "result"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	TokensIssuedTotal = TokensIssuedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	DevicesRegisteredTotal = DevicesRegisteredTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	RememberTokensTotal = RememberTokensTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		TokensIssuedTotal,
		DevicesRegisteredTotal,
		RememberTokensTotal,
	)
}
