package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationAndGroupSoh_DecodeSnapshot(t *testing.T) {
	payload := `{
		"stationGroups": [{"groupName": "ALL_1", "capabilityStatus": "GOOD", "priority": 0, "capturedAtMs": 10}],
		"stationRecords": [{
			"id": "id-1", "uuid": "v1", "stationName": "AAK", "statusSummary": "BAD",
			"needsAcknowledgement": true, "capturedAtMs": 1575410988600,
			"channelRecords": [{"channelName": "AAK.BHZ", "channelStatus": "BAD",
				"monitorValues": [{"monitorType": "MISSING", "status": "BAD", "hasUnacknowledgedChanges": true}]}]
		}],
		"isUpdateResponse": false
	}`

	var batch StationAndGroupSoh
	require.NoError(t, json.Unmarshal([]byte(payload), &batch))
	require.Len(t, batch.StationGroups, 1)
	assert.Equal(t, "ALL_1", batch.StationGroups[0].GroupName)

	require.Len(t, batch.StationRecords, 1)
	rec := batch.StationRecords[0]
	assert.Equal(t, "AAK", rec.StationName)
	assert.Equal(t, "v1", rec.UUID)
	assert.Equal(t, StatusBad, rec.StatusSummary)
	assert.Equal(t, "MISSING", rec.ChannelRecords[0].MonitorValues[0].MonitorType)
}

func TestNewEmptyStationSoh(t *testing.T) {
	now := time.UnixMilli(1575410988600)
	rec := NewEmptyStationSoh("AAK", now)

	assert.Equal(t, "AAK", rec.StationName)
	assert.Equal(t, StatusNone, rec.StatusSummary)
	assert.NotEmpty(t, rec.UUID)
	assert.NotEmpty(t, rec.ID)
	assert.Empty(t, rec.ChannelRecords)
	assert.Equal(t, now.UnixMilli(), rec.CapturedAtMs)
	assert.NotEqual(t, rec.UUID, NewEmptyStationSoh("AAK", now).UUID, "expected fresh uuid per seeded record")
}

func TestStationSoh_CloneIsIndependent(t *testing.T) {
	rec := StationSoh{
		StationName: "AAK",
		ChannelRecords: []ChannelSoh{{
			ChannelName:   "AAK.BHZ",
			MonitorValues: []MonitorValue{{MonitorType: "LAG", HasUnacknowledgedChanges: true}},
		}},
	}

	clone := rec.Clone()
	clone.ChannelRecords[0].MonitorValues[0].HasUnacknowledgedChanges = false
	clone.ChannelRecords[0].ChannelName = "changed"

	assert.True(t, rec.ChannelRecords[0].MonitorValues[0].HasUnacknowledgedChanges, "Clone() shares monitor values with original")
	assert.Equal(t, "AAK.BHZ", rec.ChannelRecords[0].ChannelName, "Clone() shares channel records with original")
}

func TestStationSoh_UnacknowledgedChanges(t *testing.T) {
	tests := []struct {
		name string
		rec  StationSoh
		want int
	}{
		{name: "no channels", rec: StationSoh{StationName: "AAK"}, want: 0},
		{
			name: "nothing unacknowledged",
			rec: StationSoh{ChannelRecords: []ChannelSoh{{
				ChannelName:   "AAK.BHZ",
				MonitorValues: []MonitorValue{{MonitorType: "LAG"}, {MonitorType: "MISSING"}},
			}}},
			want: 0,
		},
		{
			name: "across channels",
			rec: StationSoh{CapturedAtMs: 42, ChannelRecords: []ChannelSoh{
				{ChannelName: "AAK.BHZ", MonitorValues: []MonitorValue{
					{MonitorType: "LAG", HasUnacknowledgedChanges: true},
					{MonitorType: "MISSING"},
				}},
				{ChannelName: "AAK.BHN", MonitorValues: []MonitorValue{
					{MonitorType: "MISSING", HasUnacknowledgedChanges: true},
				}},
			}},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.UnacknowledgedChanges()
			require.Len(t, got, tt.want)
			for _, c := range got {
				assert.Equal(t, tt.rec.CapturedAtMs, c.FirstChangeTime)
			}
		})
	}
}

func TestClearChannels(t *testing.T) {
	records := []StationSoh{
		{StationName: "AAK", ChannelRecords: []ChannelSoh{{ChannelName: "AAK.BHZ"}}},
		{StationName: "ABC"},
	}

	cleared := ClearChannels(records)
	require.Len(t, cleared, 2)
	for _, r := range cleared {
		assert.NotNil(t, r.ChannelRecords, r.StationName)
		assert.Empty(t, r.ChannelRecords, r.StationName)
	}
	assert.Len(t, records[0].ChannelRecords, 1, "ClearChannels() modified its input")
}

func TestQuietEvent_OmitsEmptyComment(t *testing.T) {
	data, err := json.Marshal(QuietEvent{StationName: "AAK", ChannelName: "AAK.BHZ", MonitorType: "LAG"})
	require.NoError(t, err)

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.NotContains(t, obj, "comment")
	assert.Equal(t, float64(0), obj["quietDurationMs"], "quietDurationMs should be an explicit 0")
}
