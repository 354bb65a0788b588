package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external
// dependencies. Uses atomic operations for thread-safety; feed workers
// and the UI touch it from different goroutines.
type Metrics struct {
	// Counters
	messagesProcessed atomic.Uint64
	staleDropped      atomic.Uint64
	errorsTotal       atomic.Uint64
	reconnects        atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	streamUp          atomic.Int32 // 1 = connected, 0 = down
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordMessage records one processed stream or poll message.
func (m *Metrics) RecordMessage() {
	m.messagesProcessed.Add(1)
}

// RecordStaleDrop records a response discarded by the generation check.
func (m *Metrics) RecordStaleDrop() {
	m.staleDropped.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordReconnect records one stream reconnect attempt.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetStreamUp sets the stream connectivity gauge.
func (m *Metrics) SetStreamUp(up bool) {
	if up {
		m.streamUp.Store(1)
	} else {
		m.streamUp.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	MessagesProcessed uint64
	StaleDropped      uint64
	ErrorsTotal       uint64
	Reconnects        uint64
	ActiveConnections int32
	StreamUp          bool
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		MessagesProcessed: m.messagesProcessed.Load(),
		StaleDropped:      m.staleDropped.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		Reconnects:        m.reconnects.Load(),
		ActiveConnections: m.activeConnections.Load(),
		StreamUp:          m.streamUp.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.messagesProcessed.Store(0)
	m.staleDropped.Store(0)
	m.errorsTotal.Store(0)
	m.reconnects.Store(0)
	m.activeConnections.Store(0)
	m.streamUp.Store(0)
}
