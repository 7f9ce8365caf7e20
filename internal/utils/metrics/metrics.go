// internal/utils/metrics/metrics.go
package metrics

import (
	"context"
	"time"
)

// RecordQuote учитывает котировку; outcome = "ok" или имя ошибки.
func (c *Collector) RecordQuote(side, outcome string) {
	if c == nil {
		return
	}
	c.quotes.WithLabelValues(side, outcome).Inc()
}

// RecordTrade записывает метрики сделки с учетом контекста
func (c *Collector) RecordTrade(ctx context.Context, side string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	// Проверяем, не отменен ли контекст
	select {
	case <-ctx.Done():
		c.trades.WithLabelValues("cancelled", side).Inc()
		return
	default:
		status := "success"
		if !success {
			status = "failed"
		}
		c.trades.WithLabelValues(status, side).Inc()
		c.tradeDuration.WithLabelValues(side).Observe(duration.Seconds())
	}
}

// RecordGraduation counts a graduation attempt outcome
// ("graduated", "already_graduated", "not_eligible", "pool_failed", "error").
func (c *Collector) RecordGraduation(outcome string) {
	if c == nil {
		return
	}
	c.graduations.WithLabelValues(outcome).Inc()
}

// RecordPoolCreation записывает латентность создания пула
func (c *Collector) RecordPoolCreation(duration time.Duration, success bool) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	c.poolCreateDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// UpdateCurveReserves обновляет реальные резервы кривой
func (c *Collector) UpdateCurveReserves(mint string, solLamports, tokenUnits uint64) {
	if c == nil {
		return
	}
	c.curveReserves.WithLabelValues(mint, "sol").Set(float64(solLamports))
	c.curveReserves.WithLabelValues(mint, "token").Set(float64(tokenUnits))
}
