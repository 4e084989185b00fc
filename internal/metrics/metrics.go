package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "minefund_build_info",
			Help: "Build information of the mining profit engine",
		},
		[]string{"version", "commit"},
	)

	// Seeding metrics
	SeedRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefund_seed_runs_total",
			Help: "Total number of start-mining runs",
		},
		[]string{"result"},
	)

	BucketsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefund_buckets_inserted_total",
			Help: "Total number of profit buckets inserted",
		},
		[]string{"granularity"},
	)

	BucketsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefund_buckets_skipped_total",
			Help: "Total number of profit buckets skipped because they already existed",
		},
		[]string{"granularity"},
	)

	SeedFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefund_seed_failures_total",
			Help: "Total number of month or day seeding units that failed and were skipped",
		},
		[]string{"granularity"},
	)

	// Transfer metrics
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefund_transfers_total",
			Help: "Total number of profit transfer attempts by outcome",
		},
		[]string{"result"},
	)

	TransferredAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefund_transferred_amount_total",
			Help: "Total profit transferred out of funding accounts",
		},
		[]string{"currency"},
	)

	// gRPC metrics
	GRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefund_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)

	GRPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minefund_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method"},
	)
)
