// internal/utils/metrics.go
package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Counter metric - atomic value updates
type Counter struct {
	name  string
	value int64
}

// Gauge metric - atomic value updates
type Gauge struct {
	name  string
	value int64
}

// Histogram metric (count, sum, min, max)
type Histogram struct {
	name  string
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = &MetricsCollector{
			counters:   make(map[string]*Counter),
			gauges:     make(map[string]*Gauge),
			histograms: make(map[string]*Histogram),
		}
	})
	return globalMetrics
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, value int64) {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		counter, exists = m.counters[name]
		if !exists {
			counter = &Counter{name: name}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(&counter.value, value)
}

// SetGauge sets a gauge metric
func (m *MetricsCollector) SetGauge(name string, value int64) {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		gauge, exists = m.gauges[name]
		if !exists {
			gauge = &Gauge{name: name}
			m.gauges[name] = gauge
		}
		m.mu.Unlock()
	}

	atomic.StoreInt64(&gauge.value, value)
}

// GetGauge gets the current value of a gauge
func (m *MetricsCollector) GetGauge(name string) int64 {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(&gauge.value)
}

// RecordHistogram records a value in a histogram
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		histogram, exists = m.histograms[name]
		if !exists {
			histogram = &Histogram{name: name, min: value, max: value}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value
	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// GetCounterValue gets the current value of a counter
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(&counter.value)
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := make(map[string]interface{})

	counters := make(map[string]int64)
	for name, counter := range m.counters {
		counters[name] = atomic.LoadInt64(&counter.value)
	}
	metrics["counters"] = counters

	gauges := make(map[string]int64)
	for name, gauge := range m.gauges {
		gauges[name] = atomic.LoadInt64(&gauge.value)
	}
	metrics["gauges"] = gauges

	histograms := make(map[string]map[string]int64)
	for name, histogram := range m.histograms {
		histogram.mu.Lock()
		histograms[name] = map[string]int64{
			"count": histogram.count,
			"sum":   histogram.sum,
			"min":   histogram.min,
			"max":   histogram.max,
		}
		histogram.mu.Unlock()
	}
	metrics["histograms"] = histograms

	return metrics
}

// TurnMetrics records metrics for the narrative turn pipeline
type TurnMetrics struct {
	metrics *MetricsCollector
	logger  *Logger
}

// NewTurnMetrics creates a new turn metrics instance
func NewTurnMetrics() *TurnMetrics {
	return &TurnMetrics{
		metrics: GetMetricsCollector(),
		logger:  GetLogger(),
	}
}

// RecordTurn records a completed narrative turn
func (tm *TurnMetrics) RecordTurn(sessionID string, retries int, fellBack bool, duration time.Duration) {
	tm.metrics.IncrementCounter("turns_total")
	tm.metrics.AddCounter("turn_retries_total", int64(retries))
	if fellBack {
		tm.metrics.IncrementCounter("fallback_narrations_total")
	}
	tm.metrics.RecordHistogram("turn_duration_ms", duration.Milliseconds())

	tm.logger.Debug("Turn completed", map[string]interface{}{
		"session_id": sessionID,
		"retries":    retries,
		"fallback":   fellBack,
		"duration":   duration.Milliseconds(),
	})
}

// RecordGatewayError records an upstream generation failure by kind
func (tm *TurnMetrics) RecordGatewayError(provider, kind string) {
	tm.metrics.IncrementCounter("gateway_errors_total")
	tm.metrics.IncrementCounter("gateway_errors_" + kind)

	tm.logger.Warn("Gateway error", map[string]interface{}{
		"provider": provider,
		"kind":     kind,
	})
}

// RecordValidationFailure records a rejected model proposal by error kind
func (tm *TurnMetrics) RecordValidationFailure(sessionID, kind string) {
	tm.metrics.IncrementCounter("proposal_rejections_total")
	tm.metrics.IncrementCounter("proposal_rejections_" + kind)

	tm.logger.Debug("Proposal rejected", map[string]interface{}{
		"session_id": sessionID,
		"kind":       kind,
	})
}

// RecordLLMRequest records token usage for an upstream call
func (tm *TurnMetrics) RecordLLMRequest(provider, model string, tokensUsed int, duration time.Duration) {
	tm.metrics.IncrementCounter("llm_requests_total")
	tm.metrics.IncrementCounter("llm_requests_" + provider)
	tm.metrics.AddCounter("llm_tokens_total", int64(tokensUsed))
	tm.metrics.RecordHistogram("llm_response_time_ms", duration.Milliseconds())

	tm.logger.Info("LLM request completed", map[string]interface{}{
		"provider": provider,
		"model":    model,
		"tokens":   tokensUsed,
		"duration": duration.Milliseconds(),
	})
}

// StartMetricsCollection starts periodic metrics reporting
func (tm *TurnMetrics) StartMetricsCollection(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics := tm.metrics.GetMetrics()
				tm.logger.Info("Periodic metrics report", map[string]interface{}{
					"timestamp": time.Now().Unix(),
					"metrics":   metrics,
				})
			}
		}
	}()
}
