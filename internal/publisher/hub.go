// Package publisher fans SOH views out to live feed subscribers.
package publisher

import (
	"errors"
	"log/slog"
	"sync"

	"soh-gateway/internal/events"
)

// Kind distinguishes scheduled flushes from update-response publishes.
type Kind string

const (
	KindBatched   Kind = "batched"
	KindImmediate Kind = "immediate"
)

// ErrSubscriberFull is returned by a subscriber that cannot take a view
// without blocking.
var ErrSubscriberFull = errors.New("subscriber buffer full")

// Subscriber receives views from the hub. Deliver must not block.
type Subscriber interface {
	Deliver(view events.StationAndGroupSoh) error
}

// Hub is a fan-out point for the SOH feed. A failed delivery to one
// subscriber is logged and does not affect the others.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]Subscriber
	nextID  uint64
	metrics MetricsRecorder
}

// NewHub creates a hub. If m is nil, a no-op implementation is used.
func NewHub(m MetricsRecorder) *Hub {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &Hub{
		subs:    make(map[uint64]Subscriber),
		metrics: m,
	}
}

// Subscribe registers s and returns a function that removes it.
func (h *Hub) Subscribe(s Subscriber) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	count := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetGauge("subscribers", int64(count))

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			count := len(h.subs)
			h.mu.Unlock()
			h.metrics.SetGauge("subscribers", int64(count))
		})
	}
}

// Count returns the number of current subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers view to every current subscriber.
func (h *Hub) Publish(view events.StationAndGroupSoh, kind Kind) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	h.metrics.IncrementCustom("flush_" + string(kind))

	for _, s := range subs {
		if err := s.Deliver(view); err != nil {
			h.metrics.IncrementCustom("delivery_failed")
			slog.Warn("Failed to deliver SOH view to subscriber",
				"kind", kind,
				"stations", len(view.StationRecords),
				"error", err,
			)
			continue
		}
		h.metrics.RecordPublished()
	}

	slog.Debug("Published SOH view",
		"kind", kind,
		"stations", len(view.StationRecords),
		"groups", len(view.StationGroups),
		"subscribers", len(subs),
	)
}

// ChannelSubscriber buffers views on a channel. Views are dropped when the
// buffer is full.
type ChannelSubscriber struct {
	ch chan events.StationAndGroupSoh
}

// NewChannelSubscriber creates a subscriber with the given buffer size.
func NewChannelSubscriber(buffer int) *ChannelSubscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSubscriber{ch: make(chan events.StationAndGroupSoh, buffer)}
}

// Deliver enqueues view without blocking.
func (c *ChannelSubscriber) Deliver(view events.StationAndGroupSoh) error {
	select {
	case c.ch <- view:
		return nil
	default:
		return ErrSubscriberFull
	}
}

// C returns the receive side of the subscriber's buffer.
func (c *ChannelSubscriber) C() <-chan events.StationAndGroupSoh {
	return c.ch
}
