package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"soh-gateway/internal/events"
)

// progressLogInterval defines how often progress is logged.
const progressLogInterval = 5 * time.Second

// BatchPublisher writes a batch to the SOH topic.
type BatchPublisher interface {
	Publish(ctx context.Context, batch *events.StationAndGroupSoh) error
}

// MetricsRecorder defines the metrics operations used by the runner.
type MetricsRecorder interface {
	RecordPublished()
	RecordError()
}

type noOpMetrics struct{}

func (noOpMetrics) RecordPublished() {}
func (noOpMetrics) RecordError()     {}

// Runner publishes generated batches at a fixed rate.
type Runner struct {
	generator *Generator
	publisher BatchPublisher
	metrics   MetricsRecorder
	now       func() time.Time
}

// NewRunner creates a runner. m may be nil.
func NewRunner(gen *Generator, pub BatchPublisher, m MetricsRecorder) *Runner {
	if m == nil {
		m = noOpMetrics{}
	}
	return &Runner{generator: gen, publisher: pub, metrics: m, now: time.Now}
}

// Run publishes rate batches per second until duration elapses or ctx is
// cancelled. A zero duration runs until ctx is cancelled. Returns the number
// of batches sent.
func (r *Runner) Run(ctx context.Context, rate float64, duration time.Duration) (int, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("rate must be > 0, got %v", rate)
	}

	slog.Info("Starting SOH simulation", "target_rate", rate, "duration", duration)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	start := r.now()
	lastLog := start
	sent := 0

	for {
		select {
		case <-ctx.Done():
			slog.Info("SOH simulation stopped", "sent", sent)
			return sent, nil
		case <-ticker.C:
			now := r.now()
			if duration > 0 && now.Sub(start) >= duration {
				slog.Info("Duration reached",
					"total_sent", sent,
					"actual_rate", fmt.Sprintf("%.2f", calculateRate(sent, now.Sub(start))),
				)
				return sent, nil
			}

			batch := r.generator.Generate(now)
			if err := r.publisher.Publish(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return sent, nil
				}
				r.metrics.RecordError()
				return sent, fmt.Errorf("failed to publish SOH batch: %w", err)
			}
			sent++
			r.metrics.RecordPublished()

			if sent == 1 {
				slog.Info("Published first batch (sample)",
					"stations", len(batch.StationRecords),
					"first_station", batch.StationRecords[0].StationName,
					"status", batch.StationRecords[0].StatusSummary,
				)
			}
			if now.Sub(lastLog) >= progressLogInterval {
				slog.Info("Progress update",
					"sent", sent,
					"actual_rate", fmt.Sprintf("%.2f", calculateRate(sent, now.Sub(start))),
				)
				lastLog = now
			}
		}
	}
}

func calculateRate(count int, elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(count) / seconds
}
