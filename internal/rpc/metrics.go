package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_rpc_requests_total",
			Help: "Total number of node RPC requests by method",
		},
		[]string{"method"},
	)

	RPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_rpc_errors_total",
			Help: "Total number of node RPC errors by method and type",
		},
		[]string{"method", "error_type"},
	)

	RPCRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tzindexor_rpc_retries_total",
			Help: "Total number of node RPC retries by method",
		},
		[]string{"method"},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tzindexor_rpc_request_duration_seconds",
			Help:    "Duration of node RPC requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func RPCMethodInc(method string) {
	RPCRequests.WithLabelValues(method).Inc()
}

func RPCMethodDuration(method string, duration time.Duration) {
	RPCDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RPCMethodError(method, errorType string) {
	RPCErrors.WithLabelValues(method, errorType).Inc()
}

func RPCRetryInc(method string) {
	RPCRetries.WithLabelValues(method).Inc()
}
