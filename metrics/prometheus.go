package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mutex       sync.RWMutex
	registerer  prometheus.Registerer
	initialized bool
	constLabels prometheus.Labels

	gauges     map[string]*prometheus.GaugeVec
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
)

func getLogger(metricName, metricType string) *log.Logger {
	return log.WithFields("metricName", metricName, "metricType", metricType)
}

// StartMetricsHttpServer initializes the metrics registry and serves it until ctx is done
func StartMetricsHttpServer(ctx context.Context, c Config) {
	if !c.Enabled {
		return
	}

	// Init metrics registry
	initMetrics(prometheus.DefaultRegisterer, c.Env)

	// Start metrics HTTP server
	mux := http.NewServeMux()
	addr := ":" + c.Port
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = endpointMetrics
	}

	mux.Handle(endpoint, promhttp.Handler())
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second, //nolint:gomnd
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics server listening on %s%s", addr, endpoint)
	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Errorf("serve metrics http server error: %v", err)
	}
}

/*
 * -------------------- Gauge functions --------------------
 */

func registerGauge(opt prometheus.GaugeOpts, labelNames ...string) {
	logger := getLogger(opt.Name, typeGauge)
	mutex.Lock()
	defer mutex.Unlock()
	if !initialized {
		return
	}

	if _, ok := gauges[opt.Name]; ok {
		return
	}

	opt.ConstLabels = constLabels
	collector := prometheus.NewGaugeVec(opt, labelNames)
	if err := registerer.Register(collector); err != nil {
		logger.Errorf("metrics register error: %v", err)
		return
	}
	gauges[opt.Name] = collector

	logger.Debugf("metrics register successfully")
}

func gaugeSet(name string, value float64, labelValues map[string]string) {
	mutex.RLock()
	defer mutex.RUnlock()
	if !initialized {
		return
	}

	c, ok := gauges[name]
	if !ok {
		getLogger(name, typeGauge).Errorf("collector not found")
		return
	}
	c.With(labelValues).Set(value)
}

/*
 * -------------------- Counter functions --------------------
 */

func registerCounter(opt prometheus.CounterOpts, labelNames ...string) {
	logger := getLogger(opt.Name, typeCounter)
	mutex.Lock()
	defer mutex.Unlock()
	if !initialized {
		return
	}

	if _, ok := counters[opt.Name]; ok {
		return
	}

	opt.ConstLabels = constLabels
	collector := prometheus.NewCounterVec(opt, labelNames)
	if err := registerer.Register(collector); err != nil {
		logger.Errorf("metrics register error: %v", err)
		return
	}
	counters[opt.Name] = collector

	logger.Debugf("metrics register successfully")
}

func counterInc(name string, labelValues map[string]string) {
	mutex.RLock()
	defer mutex.RUnlock()
	if !initialized {
		return
	}

	c, ok := counters[name]
	if !ok {
		getLogger(name, typeCounter).Errorf("collector not found")
		return
	}
	c.With(labelValues).Inc()
}

/*
 * -------------------- Histogram functions --------------------
 */

func registerHistogram(opt prometheus.HistogramOpts, labelNames ...string) {
	logger := getLogger(opt.Name, typeHistogram)
	mutex.Lock()
	defer mutex.Unlock()
	if !initialized {
		return
	}

	if _, ok := histograms[opt.Name]; ok {
		return
	}

	opt.ConstLabels = constLabels
	collector := prometheus.NewHistogramVec(opt, labelNames)
	if err := registerer.Register(collector); err != nil {
		logger.Errorf("metrics register error: %v", err)
		return
	}
	histograms[opt.Name] = collector

	logger.Debugf("metrics register successfully")
}

func histogramObserve(name string, value float64, labelValues map[string]string) {
	mutex.RLock()
	defer mutex.RUnlock()
	if !initialized {
		return
	}

	c, ok := histograms[name]
	if !ok {
		getLogger(name, typeHistogram).Errorf("collector not found")
		return
	}
	c.With(labelValues).Observe(value)
}
