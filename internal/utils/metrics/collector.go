// internal/utils/metrics/collector.go
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricType представляет тип метрики
type MetricType string

const (
	TradeCounterType      MetricType = "trade_counter"
	TradeDurationType     MetricType = "trade_duration"
	QuoteCounterType      MetricType = "quote_counter"
	FactoryResolutionType MetricType = "factory_resolution"
	RPCLatencyType        MetricType = "rpc_latency"
	APILatencyType        MetricType = "api_latency"
	CoinPagesFetchedType  MetricType = "coin_pages_fetched"
)

const namespace = "kappa_sdk"

// Collector owns a private prometheus registry so several SDK instances in
// one process do not collide on registration.
type Collector struct {
	metrics  sync.Map
	registry *prometheus.Registry

	tradeCounter      *prometheus.CounterVec
	tradeDuration     *prometheus.HistogramVec
	quoteCounter      *prometheus.CounterVec
	factoryResolution *prometheus.CounterVec
	rpcLatency        *prometheus.HistogramVec
	apiLatency        *prometheus.HistogramVec
	coinPages         prometheus.Histogram
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	c.tradeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Total number of trades submitted",
		},
		[]string{"status", "direction"},
	)
	c.tradeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_duration_seconds",
			Help:      "Trade build and execution time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"direction"},
	)
	c.quoteCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Quotes computed, by kind and whether a quote was available",
		},
		[]string{"kind", "available"},
	)
	c.factoryResolution = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "factory_resolutions_total",
			Help:      "Factory resolutions by source",
		},
		[]string{"source"},
	)
	c.rpcLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "RPC request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "endpoint"},
	)
	c.apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_seconds",
			Help:      "Metadata API request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"endpoint", "status"},
	)
	c.coinPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sell_coin_pages",
			Help:      "Coin pages enumerated per sell",
			Buckets:   prometheus.LinearBuckets(1, 5, 7),
		},
	)

	metricsMap := map[MetricType]prometheus.Collector{
		TradeCounterType:      c.tradeCounter,
		TradeDurationType:     c.tradeDuration,
		QuoteCounterType:      c.quoteCounter,
		FactoryResolutionType: c.factoryResolution,
		RPCLatencyType:        c.rpcLatency,
		APILatencyType:        c.apiLatency,
		CoinPagesFetchedType:  c.coinPages,
	}
	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry exposes the collector's registry, e.g. for promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

// RecordTrade записывает метрики сделки с учетом контекста
func (c *Collector) RecordTrade(ctx context.Context, direction string, duration time.Duration, success bool) {
	if errors.Is(ctx.Err(), context.Canceled) {
		c.tradeCounter.WithLabelValues("cancelled", direction).Inc()
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	c.tradeCounter.WithLabelValues(status, direction).Inc()
	c.tradeDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

// RecordQuote counts one quote computation.
func (c *Collector) RecordQuote(kind string, available bool) {
	label := "true"
	if !available {
		label = "false"
	}
	c.quoteCounter.WithLabelValues(kind, label).Inc()
}

func (c *Collector) RecordFactoryResolution(source string) {
	c.factoryResolution.WithLabelValues(source).Inc()
}

// RecordRPCLatency записывает метрики RPC-запроса
func (c *Collector) RecordRPCLatency(method, endpoint string, duration time.Duration) {
	c.rpcLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (c *Collector) RecordAPICall(endpoint, status string, duration time.Duration) {
	c.apiLatency.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

func (c *Collector) RecordCoinPages(pages int) {
	c.coinPages.Observe(float64(pages))
}
