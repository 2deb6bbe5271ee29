// Package cache holds the authoritative in-memory SOH state: the latest
// snapshot per known station, the latest station group statuses, and which
// stations have changed since the last feed publish.
package cache

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"soh-gateway/internal/events"
)

// ErrMissingStationName is returned for a record without a station name.
var ErrMissingStationName = errors.New("station record has no station name")

type entry struct {
	record  events.StationSoh
	pending bool
}

// Cache is safe for concurrent use. Every mutation and the read-and-clear of
// pending records happen under a single mutex.
type Cache struct {
	mu          sync.Mutex
	now         func() time.Time
	order       []string
	entries     map[string]*entry
	pending     int
	groups      []events.StationGroupStatus
	lastArrival time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for arrival and flush times.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		now:     time.Now,
		entries: make(map[string]*entry),
		groups:  []events.StationGroupStatus{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed creates an empty NONE record for every station not yet in the cache.
// Seeded records are pending so the first flush carries every station.
// Returns the number of stations added.
func (c *Cache) Seed(stationNames []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	added := 0
	for _, name := range stationNames {
		if name == "" {
			continue
		}
		if _, ok := c.entries[name]; ok {
			continue
		}
		c.entries[name] = &entry{record: events.NewEmptyStationSoh(name, now), pending: true}
		c.order = append(c.order, name)
		c.pending++
		added++
	}
	return added
}

// Upsert replaces the cached record for rec.StationName. A record whose uuid
// matches the cached one is dropped unless isUpdateResponse is set.
// Accepted non-update-response records become pending; an accepted update
// response only refreshes a record that is already pending. A station that
// was never seeded is appended to the cache and is always pending.
func (c *Cache) Upsert(rec events.StationSoh, isUpdateResponse bool) (bool, error) {
	if rec.StationName == "" {
		return false, ErrMissingStationName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[rec.StationName]
	if !ok {
		slog.Debug("Adding station not present in catalog", "station_name", rec.StationName)
		c.entries[rec.StationName] = &entry{record: rec.Clone(), pending: true}
		c.order = append(c.order, rec.StationName)
		c.pending++
		return true, nil
	}

	if !isUpdateResponse && e.record.UUID == rec.UUID {
		slog.Warn("Duplicate station SOH uuid, dropping entry",
			"station_name", rec.StationName,
			"uuid", rec.UUID,
		)
		return false, nil
	}

	e.record = rec.Clone()
	if !isUpdateResponse && !e.pending {
		e.pending = true
		c.pending++
	}
	return true, nil
}

// Get returns a copy of the cached record for a station.
func (c *Cache) Get(stationName string) (events.StationSoh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[stationName]
	if !ok {
		return events.StationSoh{}, false
	}
	return e.record.Clone(), true
}

// GetAll returns copies of every cached record, seeded stations first and
// then stations in the order they first arrived.
func (c *Cache) GetAll() []events.StationSoh {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]events.StationSoh, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entries[name].record.Clone())
	}
	return out
}

// Len returns the number of known stations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// SetStationGroups replaces the station group statuses wholesale.
func (c *Cache) SetStationGroups(groups []events.StationGroupStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if groups == nil {
		groups = []events.StationGroupStatus{}
	}
	c.groups = append([]events.StationGroupStatus{}, groups...)
}

// StationGroups returns a copy of the latest station group statuses.
func (c *Cache) StationGroups() []events.StationGroupStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.StationGroupStatus{}, c.groups...)
}

// MarkArrival records that an inbound message was just received.
func (c *Cache) MarkArrival() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastArrival = c.now()
}

// PendingCount returns the number of stations waiting to be published.
func (c *Cache) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Drain returns the pending records and clears them in one step.
func (c *Cache) Drain() []events.StationSoh {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drainLocked()
}

// DrainIfQuiet drains pending records only when at least quiescence has
// passed since the last arrival. After a drain the arrival time is reset to
// now. Reports false when nothing was drained.
func (c *Cache) DrainIfQuiet(quiescence time.Duration) ([]events.StationSoh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == 0 {
		return nil, false
	}
	now := c.now()
	if now.Sub(c.lastArrival) < quiescence {
		return nil, false
	}
	records := c.drainLocked()
	c.lastArrival = now
	return records, true
}

func (c *Cache) drainLocked() []events.StationSoh {
	out := make([]events.StationSoh, 0, c.pending)
	if c.pending == 0 {
		return out
	}
	for _, name := range c.order {
		e := c.entries[name]
		if e.pending {
			out = append(out, e.record.Clone())
			e.pending = false
		}
	}
	c.pending = 0
	return out
}
