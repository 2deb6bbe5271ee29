// Package workflow implements the acknowledgement and quieting commands.
// Both validate locally, hand their events to the message bus in the
// background, and return without waiting for delivery. The upstream system
// confirms a change later by sending an update response on the SOH topic.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"soh-gateway/internal/events"
)

// EmitTimeout bounds a single background publish.
const EmitTimeout = 15 * time.Second

var (
	// ErrNoStations is returned when an acknowledgement names no stations.
	ErrNoStations = errors.New("no stations to acknowledge")
	// ErrMissingStationName is returned for a quiet request without a station.
	ErrMissingStationName = errors.New("quiet request is missing stationName")
	// ErrInvalidPair is returned for a channel/monitor pair with an empty field.
	ErrInvalidPair = errors.New("quiet request has an incomplete channel/monitor pair")
	// ErrNegativeDuration is returned for a negative quiet duration.
	ErrNegativeDuration = errors.New("quiet duration cannot be negative")
	// ErrDurationTooLong is returned when now plus the quiet duration overflows.
	ErrDurationTooLong = errors.New("quiet duration is too long")
)

// EventPublisher publishes acknowledgement and quiet events.
type EventPublisher interface {
	PublishAcknowledgement(ctx context.Context, ack *events.AcknowledgementEvent) error
	PublishQuiet(ctx context.Context, quiet *events.QuietEvent) error
}

// StationReader looks up the current record for a station.
type StationReader interface {
	Get(stationName string) (events.StationSoh, bool)
}

// MetricsRecorder defines the metrics operations needed by the workflows.
type MetricsRecorder interface {
	IncrementCustom(name string)
}

type noOpMetrics struct{}

func (noOpMetrics) IncrementCustom(string) {}

// Receipt reports what a command accepted locally. It never implies the
// events were delivered.
type Receipt struct {
	Accepted bool     `json:"accepted"`
	Emitted  int      `json:"emitted"`
	Skipped  []string `json:"skipped,omitempty"`
}

// Workflows runs acknowledgement and quiet commands against the cache.
type Workflows struct {
	stations     StationReader
	publisher    EventPublisher
	defaultQuiet time.Duration
	metrics      MetricsRecorder
	now          func() time.Time
	wg           sync.WaitGroup
}

// Option configures Workflows.
type Option func(*Workflows)

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workflows) {
		if now != nil {
			w.now = now
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(w *Workflows) {
		if m != nil {
			w.metrics = m
		}
	}
}

// New creates the workflows. defaultQuiet is used for quiet requests that
// carry no duration.
func New(stations StationReader, pub EventPublisher, defaultQuiet time.Duration, opts ...Option) *Workflows {
	w := &Workflows{
		stations:     stations,
		publisher:    pub,
		defaultQuiet: defaultQuiet,
		metrics:      noOpMetrics{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait blocks until every background emission has finished.
func (w *Workflows) Wait() {
	w.wg.Wait()
}

// emit runs publish in the background, detached from the caller's
// cancellation. Failures are logged and counted, never retried.
func (w *Workflows) emit(ctx context.Context, kind string, attrs []any, publish func(context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), EmitTimeout)
		defer cancel()

		if err := publish(emitCtx); err != nil {
			w.metrics.IncrementCustom(kind + "_emit_failed")
			slog.Error("Failed to publish "+kind+" event", append(attrs, "error", err)...)
			return
		}
		w.metrics.IncrementCustom(kind + "_emitted")
		slog.Debug("Published "+kind+" event", attrs...)
	}()
}

func commentText(comment *string) string {
	if comment == nil || strings.TrimSpace(*comment) == "" {
		return ""
	}
	return *comment
}

func newEventID() string {
	return uuid.NewString()
}
