// internal/utils/metrics/collector.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricType представляет тип метрики
type MetricType string

const (
	QuoteCounterType       MetricType = "quote_counter"
	TradeCounterType       MetricType = "trade_counter"
	TradeDurationType      MetricType = "trade_duration"
	GraduationCounterType  MetricType = "graduation_counter"
	PoolCreateDurationType MetricType = "pool_create_duration"
	CurveReservesType      MetricType = "curve_reserves"
)

// Collector управляет набором метрик launchpad.
// Все методы безопасны для nil-получателя, поэтому компоненты могут работать без метрик.
type Collector struct {
	metrics sync.Map

	quotes             *prometheus.CounterVec
	trades             *prometheus.CounterVec
	tradeDuration      *prometheus.HistogramVec
	graduations        *prometheus.CounterVec
	poolCreateDuration *prometheus.HistogramVec
	curveReserves      *prometheus.GaugeVec
}

// NewCollector создает коллектор и регистрирует метрики в reg.
// В тестах передается свежий prometheus.NewRegistry().
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_quotes_total",
				Help: "Total number of curve quotes by side and outcome",
			},
			[]string{"side", "outcome"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_trades_total",
				Help: "Total number of trades processed by the desk",
			},
			[]string{"status", "side"},
		),
		tradeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launchpad_trade_duration_seconds",
				Help:    "Duration from quote to applied trade, settlement included",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"side"},
		),
		graduations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchpad_graduation_attempts_total",
				Help: "Graduation attempts by outcome",
			},
			[]string{"outcome"},
		),
		poolCreateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launchpad_pool_create_duration_seconds",
				Help:    "Latency of external DEX pool creation",
				Buckets: prometheus.LinearBuckets(0.5, 0.5, 20),
			},
			[]string{"status"},
		),
		curveReserves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "launchpad_curve_real_reserves",
				Help: "Real reserves of a curve (lamports for sol, base units for token)",
			},
			[]string{"mint", "asset"},
		),
	}
	c.initializeMetrics(reg)
	return c
}

func (c *Collector) initializeMetrics(reg prometheus.Registerer) {
	metricsMap := map[MetricType]prometheus.Collector{
		QuoteCounterType:       c.quotes,
		TradeCounterType:       c.trades,
		TradeDurationType:      c.tradeDuration,
		GraduationCounterType:  c.graduations,
		PoolCreateDurationType: c.poolCreateDuration,
		CurveReservesType:      c.curveReserves,
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		if reg != nil {
			reg.MustRegister(metric)
		}
	}
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	if c == nil {
		return
	}
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
