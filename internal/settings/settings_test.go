package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soh-gateway/internal/events"
)

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
redisplayPeriod: 30s
acknowledgementQuietDuration: 15m
displayedStationGroups: [CD1.1, IMS_Contingency, ALL_1]
stations: [AAK, ABC]
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, s.RedisplayPeriod)
	assert.Equal(t, 15*time.Minute, s.AcknowledgementQuietDuration)
	assert.Equal(t, []string{"CD1.1", "IMS_Contingency", "ALL_1"}, s.DisplayedStationGroups)
	assert.Equal(t, []string{"AAK", "ABC"}, s.Stations)
}

func TestParse_KeepsDefaults(t *testing.T) {
	s, err := Parse([]byte(`stations: [AAK]`))
	require.NoError(t, err)

	assert.Equal(t, Default().RedisplayPeriod, s.RedisplayPeriod)
	assert.Equal(t, Default().AcknowledgementQuietDuration, s.AcknowledgementQuietDuration)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errPart string
	}{
		{name: "bad yaml", yaml: "redisplayPeriod: [", errPart: "failed to parse settings"},
		{name: "bad duration", yaml: "redisplayPeriod: soon", errPart: "failed to parse settings"},
		{name: "zero redisplay", yaml: "redisplayPeriod: 0s", errPart: "redisplayPeriod must be positive"},
		{name: "negative quiet", yaml: "acknowledgementQuietDuration: -1m", errPart: "acknowledgementQuietDuration must be positive"},
		{name: "empty group", yaml: `displayedStationGroups: ["ALL_1", ""]`, errPart: "empty name"},
		{name: "duplicate group", yaml: `displayedStationGroups: [ALL_1, ALL_1]`, errPart: "more than once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("displayedStationGroups: [ALL_1]\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALL_1"}, s.DisplayedStationGroups)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStationGroupStatuses(t *testing.T) {
	s := &Settings{DisplayedStationGroups: []string{"CD1.1", "ALL_1"}}
	now := time.UnixMilli(1575410988600)

	groups := s.StationGroupStatuses(now)
	require.Len(t, groups, 2)
	assert.Equal(t, events.StationGroupStatus{
		GroupName:        "CD1.1",
		CapabilityStatus: events.StatusNone,
		Priority:         0,
		CapturedAtMs:     now.UnixMilli(),
	}, groups[0])
	assert.Equal(t, 1, groups[1].Priority)
}
