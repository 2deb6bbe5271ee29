package cache

import "soh-gateway/internal/events"

// View builds a feed payload from records, with channel detail removed and
// the current station groups attached.
func (c *Cache) View(records []events.StationSoh, isUpdateResponse bool) events.StationAndGroupSoh {
	return events.StationAndGroupSoh{
		StationGroups:    c.StationGroups(),
		StationRecords:   events.ClearChannels(records),
		IsUpdateResponse: isUpdateResponse,
	}
}

// CurrentView returns the overview of every known station.
func (c *Cache) CurrentView() events.StationAndGroupSoh {
	return c.View(c.GetAll(), false)
}

// StationDetail returns the channel-level view of a station, or an empty
// detail carrying only the name when the station is unknown.
func (c *Cache) StationDetail(stationName string) events.StationDetail {
	rec, ok := c.Get(stationName)
	if !ok {
		return events.StationDetail{StationName: stationName, ChannelRecords: []events.ChannelSoh{}}
	}
	return rec.Detail()
}
