// Package scheduler coalesces high-frequency SOH ingestion into a steady
// feed. It ticks at a fixed cadence and flushes pending records to the
// publisher once ingestion has been quiet for a short window.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"soh-gateway/internal/events"
	"soh-gateway/internal/publisher"
)

const (
	// TickInterval is how often the scheduler checks for pending records.
	TickInterval = 250 * time.Millisecond
	// QuiescenceThreshold is the minimum gap since the last arrival before a flush.
	QuiescenceThreshold = 500 * time.Millisecond
)

// PendingSource is the cache the scheduler drains.
type PendingSource interface {
	DrainIfQuiet(quiescence time.Duration) ([]events.StationSoh, bool)
	View(records []events.StationSoh, isUpdateResponse bool) events.StationAndGroupSoh
}

// ViewPublisher delivers views to feed subscribers.
type ViewPublisher interface {
	Publish(view events.StationAndGroupSoh, kind publisher.Kind)
}

// Scheduler drives batched publication of pending SOH records.
type Scheduler struct {
	source       PendingSource
	publisher    ViewPublisher
	tickInterval time.Duration
	quiescence   time.Duration
}

// NewScheduler creates a scheduler using the fixed tick and quiescence values.
func NewScheduler(source PendingSource, pub ViewPublisher) *Scheduler {
	return &Scheduler{
		source:       source,
		publisher:    pub,
		tickInterval: TickInterval,
		quiescence:   QuiescenceThreshold,
	}
}

// Run checks immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Starting SOH batching scheduler",
		"tick_interval", s.tickInterval,
		"quiescence", s.quiescence,
	)

	s.CheckAndFlush()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SOH batching scheduler stopped")
			return nil
		case <-ticker.C:
			s.CheckAndFlush()
		}
	}
}

// CheckAndFlush publishes the pending records if ingestion has been quiet
// long enough. Reports whether a flush happened.
func (s *Scheduler) CheckAndFlush() bool {
	records, ok := s.source.DrainIfQuiet(s.quiescence)
	if !ok {
		return false
	}

	s.publisher.Publish(s.source.View(records, false), publisher.KindBatched)
	slog.Debug("Flushed pending SOH records", "stations", len(records))
	return true
}
