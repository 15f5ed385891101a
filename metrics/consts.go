package metrics

const (
	endpointMetrics = "/metrics"
)

// Metric types
const (
	typeGauge     = "gauge"
	typeCounter   = "counter"
	typeHistogram = "histogram"
)

// Metric names and labels
const (
	prefix   = "xcall_"
	labelEnv = "env"

	prefixChain        = prefix + "chain_"
	metricTxCount      = prefixChain + "tx_count"
	metricTxLatency    = prefixChain + "tx_latency_ms"
	metricLatestHeight = prefixChain + "latest_height"
	labelChainID       = "chain_id"
	labelIsSuccess     = "success"

	prefixRelayer           = prefix + "relayer_"
	metricRelayedCount      = prefixRelayer + "relayed_count"
	metricRelayErrorCount   = prefixRelayer + "error_count"
	metricClientUpdateCount = prefixRelayer + "client_update_count"
	labelSrcChain           = "src_chain"
	labelDstChain           = "dst_chain"
	labelKind               = "kind"
)
