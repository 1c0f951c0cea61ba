package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(httpRequestsTotal, httpRetriesTotal) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_http_requests_total",
			Help: "REST calls issued to the document service, by method and outcome.",
		},
		[]string{"method", "outcome"}, // outcome: 2xx, 4xx, 5xx, timeout, network
	)

	httpRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_http_retries_total",
			Help: "Transport-level retries of idempotent requests.",
		},
		[]string{"method"},
	)
)

func ObserveRequest(method, outcome string) {
	httpRequestsTotal.WithLabelValues(norm(method), norm(outcome)).Inc()
}

func IncRetry(method string) {
	httpRetriesTotal.WithLabelValues(norm(method)).Inc()
}
