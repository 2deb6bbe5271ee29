package events

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// NewEmptyStationSoh creates the placeholder record a known station carries
// until its first snapshot arrives.
func NewEmptyStationSoh(stationName string, now time.Time) StationSoh {
	return StationSoh{
		ID:                      uuid.NewString(),
		UUID:                    uuid.NewString(),
		StationName:             stationName,
		StatusSummary:           StatusNone,
		CapturedAtMs:            now.UnixMilli(),
		StationGroupMemberships: []StationGroupMembership{},
		ChannelRecords:          []ChannelSoh{},
		Aggregates:              []StationAggregate{},
		StatusContributors:      []StatusContributor{},
	}
}

// Clone returns a deep copy so callers never share slices with the cache.
func (s StationSoh) Clone() StationSoh {
	out := s
	out.StationGroupMemberships = slices.Clone(s.StationGroupMemberships)
	out.Aggregates = slices.Clone(s.Aggregates)
	out.StatusContributors = slices.Clone(s.StatusContributors)
	if s.ChannelRecords != nil {
		out.ChannelRecords = make([]ChannelSoh, len(s.ChannelRecords))
		for i, ch := range s.ChannelRecords {
			ch.MonitorValues = slices.Clone(ch.MonitorValues)
			out.ChannelRecords[i] = ch
		}
	}
	return out
}

// WithoutChannels returns a copy with channel detail removed, as sent on the
// overview feed.
func (s StationSoh) WithoutChannels() StationSoh {
	out := s.Clone()
	out.ChannelRecords = []ChannelSoh{}
	return out
}

// Detail returns the channel-level view of the record.
func (s StationSoh) Detail() StationDetail {
	c := s.Clone()
	if c.ChannelRecords == nil {
		c.ChannelRecords = []ChannelSoh{}
	}
	return StationDetail{ID: c.ID, StationName: c.StationName, ChannelRecords: c.ChannelRecords}
}

// UnacknowledgedChanges lists every monitor with unacknowledged changes. The
// first change time is the snapshot's capture time.
func (s StationSoh) UnacknowledgedChanges() []AcknowledgedChange {
	var changes []AcknowledgedChange
	for _, ch := range s.ChannelRecords {
		for _, mv := range ch.MonitorValues {
			if mv.HasUnacknowledgedChanges {
				changes = append(changes, AcknowledgedChange{
					FirstChangeTime: s.CapturedAtMs,
					MonitorType:     mv.MonitorType,
					ChannelName:     ch.ChannelName,
				})
			}
		}
	}
	return changes
}

// ClearChannels returns copies of records with channel detail removed.
func ClearChannels(records []StationSoh) []StationSoh {
	out := make([]StationSoh, 0, len(records))
	for _, r := range records {
		out = append(out, r.WithoutChannels())
	}
	return out
}
