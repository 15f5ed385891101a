package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func initMetrics(r prometheus.Registerer, env string) {
	mutex.Lock()
	if !initialized {
		registerer = r
		gauges = make(map[string]*prometheus.GaugeVec)
		counters = make(map[string]*prometheus.CounterVec)
		histograms = make(map[string]*prometheus.HistogramVec)
		constLabels = prometheus.Labels{}
		if env != "" {
			constLabels[labelEnv] = env
		}
		initialized = true
	}
	mutex.Unlock()

	registerCounter(prometheus.CounterOpts{Name: metricTxCount}, labelChainID, labelIsSuccess)
	registerHistogram(prometheus.HistogramOpts{Name: metricTxLatency}, labelChainID, labelIsSuccess)
	registerGauge(prometheus.GaugeOpts{Name: metricLatestHeight}, labelChainID)
	registerCounter(prometheus.CounterOpts{Name: metricRelayedCount}, labelSrcChain, labelDstChain, labelKind)
	registerCounter(prometheus.CounterOpts{Name: metricRelayErrorCount}, labelSrcChain, labelDstChain, labelKind)
	registerCounter(prometheus.CounterOpts{Name: metricClientUpdateCount}, labelSrcChain, labelDstChain)
}

// Init registers the collectors on r without starting a server
func Init(r prometheus.Registerer, env string) {
	initMetrics(r, env)
}

// RecordExecution counts one transaction and its latency
func RecordExecution(chainID string, isSuccess bool, latency time.Duration) {
	labels := map[string]string{labelChainID: chainID, labelIsSuccess: strconv.FormatBool(isSuccess)}
	counterInc(metricTxCount, labels)
	histogramObserve(metricTxLatency, float64(latency/time.Millisecond), labels)
}

// RecordLatestHeight tracks the last sealed block of a chain
func RecordLatestHeight(chainID string, height uint64) {
	gaugeSet(metricLatestHeight, float64(height), map[string]string{labelChainID: chainID})
}

// RecordRelayed counts a message delivered by the relayer. kind is the ibc call, e.g. recv_packet
func RecordRelayed(srcChain, dstChain, kind string) {
	counterInc(metricRelayedCount, map[string]string{labelSrcChain: srcChain, labelDstChain: dstChain, labelKind: kind})
}

// RecordRelayError counts a delivery attempt that failed for good
func RecordRelayError(srcChain, dstChain, kind string) {
	counterInc(metricRelayErrorCount, map[string]string{labelSrcChain: srcChain, labelDstChain: dstChain, labelKind: kind})
}

// RecordClientUpdate counts a header submitted to the light client on dstChain
func RecordClientUpdate(srcChain, dstChain string) {
	counterInc(metricClientUpdateCount, map[string]string{labelSrcChain: srcChain, labelDstChain: dstChain})
}
