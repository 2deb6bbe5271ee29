package publisher

// MetricsRecorder defines the metrics operations needed by the hub.
type MetricsRecorder interface {
	RecordPublished()
	IncrementCustom(name string)
	SetGauge(name string, value int64)
}

// NoOpMetrics is a null-object implementation of MetricsRecorder.
type NoOpMetrics struct{}

var _ MetricsRecorder = (*NoOpMetrics)(nil)

// RecordPublished does nothing.
func (n *NoOpMetrics) RecordPublished() {}

// IncrementCustom does nothing.
func (n *NoOpMetrics) IncrementCustom(_ string) {}

// SetGauge does nothing.
func (n *NoOpMetrics) SetGauge(_ string, _ int64) {}
