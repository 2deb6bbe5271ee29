// Package simulator generates station SOH batches with configurable status
// distributions, standing in for the upstream analysis engine during local
// runs and load tests. Seeded generators are deterministic.
package simulator

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"soh-gateway/internal/events"
)

const (
	// DefaultStatusDist is the default monitor status distribution.
	DefaultStatusDist = "GOOD:80,MARGINAL:15,BAD:5"

	thresholdMarginal = 10.0
	thresholdBad      = 20.0
)

var (
	defaultChannels     = []string{"BHZ", "BHN", "BHE"}
	defaultMonitorTypes = []string{"LAG", "MISSING", "TIMELINESS", "ENV_CLOCK_LOCKED"}
	statusRank          = map[string]int{events.StatusGood: 1, events.StatusMarginal: 2, events.StatusBad: 3}
)

// Config controls what the generator produces.
type Config struct {
	Stations         []string
	StationGroups    []string
	Channels         []string
	MonitorTypes     []string
	StatusDist       string
	StationsPerBatch int
	Seed             int64
}

// Validate checks the configuration and fills in defaults for empty
// channel and monitor lists.
func (c *Config) Validate() error {
	if len(c.Stations) == 0 {
		return errors.New("stations cannot be empty")
	}
	if c.StationsPerBatch <= 0 {
		return errors.New("stations-per-batch must be > 0")
	}
	if len(c.Channels) == 0 {
		c.Channels = defaultChannels
	}
	if len(c.MonitorTypes) == 0 {
		c.MonitorTypes = defaultMonitorTypes
	}
	if c.StatusDist == "" {
		c.StatusDist = DefaultStatusDist
	}

	dist, err := ParseDistribution(c.StatusDist)
	if err != nil {
		return fmt.Errorf("invalid status-dist: %w", err)
	}
	for status := range dist {
		if _, ok := statusRank[status]; !ok {
			return fmt.Errorf("invalid status-dist: unknown status %s", status)
		}
	}
	return nil
}

// ParseDistribution parses "KEY:PERCENT,..." into a map. Percentages must sum
// to 100.
func ParseDistribution(distStr string) (map[string]int, error) {
	result := make(map[string]int)
	if distStr == "" {
		return result, fmt.Errorf("distribution string cannot be empty")
	}

	total := 0
	for _, part := range strings.Split(distStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.Split(part, ":")
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid distribution format: %s (expected KEY:PERCENT)", part)
		}

		var percent int
		if _, err := fmt.Sscanf(kv[1], "%d", &percent); err != nil {
			return nil, fmt.Errorf("invalid percentage in %s: %w", part, err)
		}
		if percent < 0 || percent > 100 {
			return nil, fmt.Errorf("percentage must be 0-100, got %d in %s", percent, part)
		}

		result[strings.TrimSpace(kv[0])] = percent
		total += percent
	}

	if total != 100 {
		return nil, fmt.Errorf("distribution percentages must sum to 100, got %d", total)
	}
	return result, nil
}

type weightedValue struct {
	value  string
	weight int
}

// Generator builds SOH batches. Stations are visited round-robin so every
// station is refreshed once per len(Stations)/StationsPerBatch batches.
// A Generator is not safe for concurrent use.
type Generator struct {
	cfg        Config
	rng        *rand.Rand
	statusDist []weightedValue
	next       int
}

// New creates a generator. cfg is validated first.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dist, _ := ParseDistribution(cfg.StatusDist)
	statusDist := make([]weightedValue, 0, len(dist))
	// Fixed order so a seeded generator is reproducible
	for _, status := range []string{events.StatusGood, events.StatusMarginal, events.StatusBad} {
		if w, ok := dist[status]; ok && w > 0 {
			statusDist = append(statusDist, weightedValue{value: status, weight: w})
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
		statusDist: statusDist,
	}, nil
}

// Generate returns the next batch, captured at now.
func (g *Generator) Generate(now time.Time) *events.StationAndGroupSoh {
	nowMs := now.UnixMilli()
	count := min(g.cfg.StationsPerBatch, len(g.cfg.Stations))

	batch := &events.StationAndGroupSoh{
		StationGroups:  make([]events.StationGroupStatus, 0, len(g.cfg.StationGroups)),
		StationRecords: make([]events.StationSoh, 0, count),
	}
	for i, name := range g.cfg.StationGroups {
		batch.StationGroups = append(batch.StationGroups, events.StationGroupStatus{
			GroupName:        name,
			CapabilityStatus: events.StatusGood,
			Priority:         i,
			CapturedAtMs:     nowMs,
		})
	}

	for i := 0; i < count; i++ {
		name := g.cfg.Stations[g.next]
		g.next = (g.next + 1) % len(g.cfg.Stations)
		batch.StationRecords = append(batch.StationRecords, g.station(name, nowMs))
	}
	return batch
}

func (g *Generator) station(name string, nowMs int64) events.StationSoh {
	rec := events.StationSoh{
		ID:                      uuid.New().String(),
		UUID:                    uuid.New().String(),
		StationName:             name,
		StatusSummary:           events.StatusGood,
		CapturedAtMs:            nowMs,
		StationGroupMemberships: make([]events.StationGroupMembership, 0, len(g.cfg.StationGroups)),
		ChannelRecords:          make([]events.ChannelSoh, 0, len(g.cfg.Channels)),
		Aggregates:              []events.StationAggregate{},
		StatusContributors:      make([]events.StatusContributor, 0, len(g.cfg.MonitorTypes)),
	}
	for _, group := range g.cfg.StationGroups {
		rec.StationGroupMemberships = append(rec.StationGroupMemberships, events.StationGroupMembership{
			GroupName:        group,
			CapabilityStatus: events.StatusGood,
		})
	}

	worstByType := make(map[string]string, len(g.cfg.MonitorTypes))
	for _, ch := range g.cfg.Channels {
		channel := events.ChannelSoh{
			ChannelName:   name + "." + ch,
			ChannelStatus: events.StatusGood,
			MonitorValues: make([]events.MonitorValue, 0, len(g.cfg.MonitorTypes)),
		}
		for _, monitorType := range g.cfg.MonitorTypes {
			mv := g.monitorValue(monitorType)
			channel.MonitorValues = append(channel.MonitorValues, mv)
			channel.ChannelStatus = worse(channel.ChannelStatus, mv.Status)
			worstByType[monitorType] = worse(worstByType[monitorType], mv.Status)
			if mv.HasUnacknowledgedChanges {
				rec.NeedsAcknowledgement = true
			}
		}
		rec.StatusSummary = worse(rec.StatusSummary, channel.ChannelStatus)
		rec.ChannelRecords = append(rec.ChannelRecords, channel)
	}

	for _, monitorType := range g.cfg.MonitorTypes {
		rec.StatusContributors = append(rec.StatusContributors, events.StatusContributor{
			Type:          monitorType,
			Contributing:  true,
			StatusSummary: worstByType[monitorType],
		})
	}
	rec.NeedsAttention = rec.StatusSummary == events.StatusBad
	return rec
}

func (g *Generator) monitorValue(monitorType string) events.MonitorValue {
	status := g.selectWeighted(g.statusDist)

	var value float64
	switch status {
	case events.StatusBad:
		value = thresholdBad + g.rng.Float64()*thresholdBad
	case events.StatusMarginal:
		value = thresholdMarginal + g.rng.Float64()*(thresholdBad-thresholdMarginal)
	default:
		value = g.rng.Float64() * thresholdMarginal
	}
	marginal, bad := thresholdMarginal, thresholdBad

	return events.MonitorValue{
		MonitorType:              monitorType,
		Value:                    &value,
		ValuePresent:             true,
		Status:                   status,
		HasUnacknowledgedChanges: status != events.StatusGood,
		ThresholdMarginal:        &marginal,
		ThresholdBad:             &bad,
	}
}

// selectWeighted picks a value using cumulative weights.
func (g *Generator) selectWeighted(choices []weightedValue) string {
	if len(choices) == 0 {
		return events.StatusNone
	}

	total := 0
	for _, c := range choices {
		total += c.weight
	}

	r := g.rng.Intn(total)
	cumulative := 0
	for _, c := range choices {
		cumulative += c.weight
		if r < cumulative {
			return c.value
		}
	}
	return choices[len(choices)-1].value
}

func worse(a, b string) string {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}
