package chain

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlocksMined       prometheus.Counter
	prometheusMiningDuration    prometheus.Histogram
	prometheusTxVerifyFailures  prometheus.Counter
	prometheusUTXOReIndex       prometheus.Counter
	prometheusUTXOUpdate        prometheus.Counter
	prometheusInsufficientFunds prometheus.Counter

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlocksMined = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Name:      "blocks_mined",
			Help:      "Number of blocks mined and appended to the chain",
		},
	)
	prometheusMiningDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "utxochain",
			Name:      "mining_duration_seconds",
			Help:      "Time spent searching for a block nonce",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
	prometheusTxVerifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Name:      "tx_verify_failures",
			Help:      "Number of transactions rejected by signature verification",
		},
	)
	prometheusUTXOReIndex = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Name:      "utxo_reindex",
			Help:      "Number of full utxo index rebuilds",
		},
	)
	prometheusUTXOUpdate = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Name:      "utxo_update",
			Help:      "Number of blocks applied incrementally to the utxo index",
		},
	)
	prometheusInsufficientFunds = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Name:      "insufficient_funds",
			Help:      "Number of payments refused for lack of spendable outputs",
		},
	)
}
