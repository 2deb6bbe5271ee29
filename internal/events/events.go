// Package events defines the SOH payloads carried on the soh.ui-materialized,
// soh.ack and soh.quiet topics and on the subscription feed.
package events

// Status summary values for a station, channel or monitor.
const (
	StatusNone     = "NONE"
	StatusGood     = "GOOD"
	StatusMarginal = "MARGINAL"
	StatusBad      = "BAD"
)

// StationGroupMembership names a group a station belongs to and the station's
// capability within it.
type StationGroupMembership struct {
	GroupName        string `json:"groupName"`
	CapabilityStatus string `json:"capabilityStatus"`
}

// MonitorValue is one monitor's value and status on a channel.
type MonitorValue struct {
	MonitorType              string   `json:"monitorType"`
	Value                    *float64 `json:"value,omitempty"`
	ValuePresent             bool     `json:"valuePresent"`
	Status                   string   `json:"status"`
	HasUnacknowledgedChanges bool     `json:"hasUnacknowledgedChanges"`
	QuietUntilMs             int64    `json:"quietUntilMs,omitempty"`
	ThresholdMarginal        *float64 `json:"thresholdMarginal,omitempty"`
	ThresholdBad             *float64 `json:"thresholdBad,omitempty"`
}

// ChannelSoh holds the monitor values for one channel of a station.
type ChannelSoh struct {
	ChannelName   string         `json:"channelName"`
	ChannelStatus string         `json:"channelStatus"`
	MonitorValues []MonitorValue `json:"monitorValues"`
}

// StationAggregate is a station-level rollup value (for example ENV or LAG).
type StationAggregate struct {
	AggregateType string   `json:"aggregateType"`
	Value         *float64 `json:"value,omitempty"`
	ValuePresent  bool     `json:"valuePresent"`
}

// StatusContributor is a monitor type that contributes to the station summary.
type StatusContributor struct {
	Type          string   `json:"type"`
	Value         *float64 `json:"value,omitempty"`
	ValuePresent  bool     `json:"valuePresent"`
	Contributing  bool     `json:"contributing"`
	StatusSummary string   `json:"statusSummary"`
}

// StationSoh is one station's current health snapshot. Snapshots are replaced
// wholesale, never merged field by field.
type StationSoh struct {
	ID                      string                   `json:"id"`
	UUID                    string                   `json:"uuid"`
	StationName             string                   `json:"stationName"`
	StatusSummary           string                   `json:"statusSummary"`
	NeedsAcknowledgement    bool                     `json:"needsAcknowledgement"`
	NeedsAttention          bool                     `json:"needsAttention"`
	CapturedAtMs            int64                    `json:"capturedAtMs"`
	StationGroupMemberships []StationGroupMembership `json:"stationGroupMemberships"`
	ChannelRecords          []ChannelSoh             `json:"channelRecords"`
	Aggregates              []StationAggregate       `json:"aggregates"`
	StatusContributors      []StatusContributor      `json:"statusContributors"`
}

// StationGroupStatus is the capability of one station group.
type StationGroupStatus struct {
	GroupName        string `json:"groupName"`
	CapabilityStatus string `json:"capabilityStatus"`
	Priority         int    `json:"priority"`
	CapturedAtMs     int64  `json:"capturedAtMs"`
}

// StationAndGroupSoh is both the inbound batch on the SOH topic and the view
// pushed to feed subscribers.
type StationAndGroupSoh struct {
	StationGroups    []StationGroupStatus `json:"stationGroups"`
	StationRecords   []StationSoh         `json:"stationRecords"`
	IsUpdateResponse bool                 `json:"isUpdateResponse"`
}

// StationDetail is the channel-level view of one station.
type StationDetail struct {
	ID             string       `json:"id,omitempty"`
	StationName    string       `json:"stationName"`
	ChannelRecords []ChannelSoh `json:"channelRecords"`
}

// AcknowledgedChange identifies one unacknowledged channel/monitor pair.
type AcknowledgedChange struct {
	FirstChangeTime int64  `json:"firstChangeTime"`
	MonitorType     string `json:"monitorType"`
	ChannelName     string `json:"channelName"`
}

// AcknowledgementEvent is published to the acknowledgement topic.
type AcknowledgementEvent struct {
	ID                  string               `json:"id"`
	AcknowledgedStation string               `json:"acknowledgedStation"`
	AcknowledgedBy      string               `json:"acknowledgedBy"`
	AcknowledgedAtMs    int64                `json:"acknowledgedAtMs"`
	Comment             *string              `json:"comment,omitempty"`
	AcknowledgedChanges []AcknowledgedChange `json:"acknowledgedChanges"`
}

// QuietEvent is published to the quiet topic. A QuietDurationMs of zero
// cancels an existing quiet period.
type QuietEvent struct {
	StationName     string  `json:"stationName"`
	ChannelName     string  `json:"channelName"`
	MonitorType     string  `json:"monitorType"`
	QuietUntilMs    int64   `json:"quietUntilMs"`
	QuietDurationMs int64   `json:"quietDurationMs"`
	QuietedBy       string  `json:"quietedBy"`
	Comment         *string `json:"comment,omitempty"`
}

// ChannelMonitorPair names one monitor on one channel.
type ChannelMonitorPair struct {
	ChannelName string `json:"channelName"`
	MonitorType string `json:"monitorType"`
}

// ChannelMonitorInput is one quiet request for a station. A nil
// QuietDurationMs means the configured default quiet duration.
type ChannelMonitorInput struct {
	StationName         string               `json:"stationName"`
	ChannelMonitorPairs []ChannelMonitorPair `json:"channelMonitorPairs"`
	QuietDurationMs     *int64               `json:"quietDurationMs,omitempty"`
	Comment             *string              `json:"comment,omitempty"`
}
