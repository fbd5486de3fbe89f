package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type StorageMetrics struct {
	OperationDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	CustomersRegisteredTotal prometheus.Counter
	SpendRecordedCentsTotal  prometheus.Counter
}

type RewardMetrics struct {
	CustomersTotal      prometheus.Gauge
	CustomersAtGoal     prometheus.Gauge
	TotalSpentCents     prometheus.Gauge
	LastSummaryUnixTime prometheus.Gauge
}

var (
	Storage = StorageMetrics{
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loyalty_storage_operation_duration_seconds",
				Help:    "Histogram of storage backend operation latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "operation", "status"},
		),
	}

	Business = BusinessMetrics{
		CustomersRegisteredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loyalty_customers_registered_total",
				Help: "Total number of customers registered.",
			},
		),
		SpendRecordedCentsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loyalty_spend_recorded_cents_total",
				Help: "Total spend recorded, in cents.",
			},
		),
	}

	Rewards = RewardMetrics{
		CustomersTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loyalty_customers_total",
				Help: "Number of customers in the loyalty program at the last summary.",
			},
		),
		CustomersAtGoal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loyalty_customers_at_goal",
				Help: "Number of customers whose spend has reached the reward goal.",
			},
		),
		TotalSpentCents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loyalty_total_spent_cents",
				Help: "Sum of all customers' recorded spend, in cents.",
			},
		),
		LastSummaryUnixTime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loyalty_reward_summary_last_run_timestamp_seconds",
				Help: "Unix time of the last completed reward summary.",
			},
		),
	}
)

// ObserveStorage records the latency of one backend call.
func ObserveStorage(backend, operation string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Storage.OperationDuration.WithLabelValues(backend, operation, status).Observe(seconds)
}
