package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_ingested_total",
		Help: "Total number of order lines ingested, by channel",
	}, []string{"channel"})

	OrderRowsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_rows_rejected_total",
		Help: "Total number of input rows rejected during normalization",
	}, []string{"channel", "reason"})

	IngestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_ingest_latency_seconds",
		Help:    "Latency of file normalization and persistence",
		Buckets: prometheus.DefBuckets,
	})

	ShipmentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_confirmed_total",
		Help: "Total number of shipments confirmed",
	})

	ShipmentsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_cancelled_total",
		Help: "Total number of shipments cancelled before dispatch",
	})

	ShipmentsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_dispatched_total",
		Help: "Total number of shipments marked dispatched",
	})

	ShipmentNumbersGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipment_numbers_generated_total",
		Help: "Total number of shipment numbers allocated, by location",
	}, []string{"location"})

	OrdersSplitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_split_total",
		Help: "Total number of split shipment operations",
	})

	OrdersMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_merged_total",
		Help: "Total number of orders merged into shipment batches",
	})

	TxRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transaction_rollbacks_total",
		Help: "Total number of rolled-back state machine transactions",
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
