package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Total number of REST API requests by resource, method and status",
		},
		[]string{"resource", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "Duration of REST API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "method"},
	)

	StoreItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_store_items",
			Help: "Number of records currently held by a store",
		},
		[]string{"resource"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_store_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"resource", "operation"},
	)
)
