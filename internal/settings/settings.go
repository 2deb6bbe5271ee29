// Package settings loads the SOH display configuration: the batch display
// interval, the default quiet duration, the ordered station groups and an
// optional static station list. It is read once at startup.
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"soh-gateway/internal/events"
)

// Settings is the SOH display configuration.
type Settings struct {
	RedisplayPeriod              time.Duration `yaml:"redisplayPeriod"`
	AcknowledgementQuietDuration time.Duration `yaml:"acknowledgementQuietDuration"`
	DisplayedStationGroups       []string      `yaml:"displayedStationGroups"`
	Stations                     []string      `yaml:"stations"`
}

// Default returns the settings used when no file is configured.
func Default() *Settings {
	return &Settings{
		RedisplayPeriod:              20 * time.Second,
		AcknowledgementQuietDuration: 5 * time.Minute,
		DisplayedStationGroups:       []string{"ALL_1", "ALL_2"},
	}
}

// Load reads settings from a YAML file. Fields missing from the file keep
// their default values.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes settings from YAML and validates them.
func Parse(data []byte) (*Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {
	if s.RedisplayPeriod <= 0 {
		return errors.New("redisplayPeriod must be positive")
	}
	if s.AcknowledgementQuietDuration <= 0 {
		return errors.New("acknowledgementQuietDuration must be positive")
	}
	seen := make(map[string]bool, len(s.DisplayedStationGroups))
	for _, name := range s.DisplayedStationGroups {
		if name == "" {
			return errors.New("displayedStationGroups cannot contain an empty name")
		}
		if seen[name] {
			return fmt.Errorf("displayedStationGroups contains %q more than once", name)
		}
		seen[name] = true
	}
	return nil
}

// StationGroupStatuses builds the initial group statuses, one per displayed
// group with its list position as priority.
func (s *Settings) StationGroupStatuses(now time.Time) []events.StationGroupStatus {
	groups := make([]events.StationGroupStatus, 0, len(s.DisplayedStationGroups))
	for i, name := range s.DisplayedStationGroups {
		groups = append(groups, events.StationGroupStatus{
			GroupName:        name,
			CapabilityStatus: events.StatusNone,
			Priority:         i,
			CapturedAtMs:     now.UnixMilli(),
		})
	}
	return groups
}
