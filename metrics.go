package embedpack

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    batchCounter   prometheus.Counter
//	    batchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordBatch(lines, surviving int, duration time.Duration, err error) {
//	    p.batchCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordBatch is called after each batch.
	// lines is the batch size, surviving the number of tokens that passed the
	// vocabulary filter, err is nil if the batch was appended.
	RecordBatch(lines, surviving int, duration time.Duration, err error)

	// RecordFlush is called once after the arrays are closed and the offsets
	// written (or the attempt failed).
	RecordFlush(documents int, tokens int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBatch(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordFlush(int, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BatchCount      atomic.Int64
	BatchErrors     atomic.Int64
	BatchTotalNanos atomic.Int64
	Lines           atomic.Int64
	Surviving       atomic.Int64
	FlushCount      atomic.Int64
	FlushErrors     atomic.Int64
	FlushTotalNanos atomic.Int64
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(lines, surviving int, duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BatchErrors.Add(1)
		return
	}
	b.Lines.Add(int64(lines))
	b.Surviving.Add(int64(surviving))
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(_ int, _ int64, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BatchCount:     b.BatchCount.Load(),
		BatchErrors:    b.BatchErrors.Load(),
		BatchAvgNanos:  b.getAvgBatchNanos(),
		Lines:          b.Lines.Load(),
		Surviving:      b.Surviving.Load(),
		FlushCount:     b.FlushCount.Load(),
		FlushErrors:    b.FlushErrors.Load(),
		FlushTotalNano: b.FlushTotalNanos.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgBatchNanos() int64 {
	count := b.BatchCount.Load()
	if count == 0 {
		return 0
	}
	return b.BatchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BatchCount     int64
	BatchErrors    int64
	BatchAvgNanos  int64
	Lines          int64
	Surviving      int64
	FlushCount     int64
	FlushErrors    int64
	FlushTotalNano int64
}
