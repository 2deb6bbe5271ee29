package simulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soh-gateway/internal/events"
)

func TestParseDistribution(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]int
		wantErr bool
	}{
		{name: "valid", input: "GOOD:80, MARGINAL:15, BAD:5", want: map[string]int{"GOOD": 80, "MARGINAL": 15, "BAD": 5}},
		{name: "single", input: "BAD:100", want: map[string]int{"BAD": 100}},
		{name: "empty", input: "", wantErr: true},
		{name: "bad format", input: "GOOD=100", wantErr: true},
		{name: "bad percent", input: "GOOD:x", wantErr: true},
		{name: "out of range", input: "GOOD:120", wantErr: true},
		{name: "sum not 100", input: "GOOD:50,BAD:40", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDistribution(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Stations: []string{"AAK"}, StationsPerBatch: 1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultChannels, cfg.Channels)
	assert.Equal(t, DefaultStatusDist, cfg.StatusDist)

	assert.Error(t, (&Config{StationsPerBatch: 1}).Validate())
	assert.Error(t, (&Config{Stations: []string{"AAK"}}).Validate())
	assert.Error(t, (&Config{Stations: []string{"AAK"}, StationsPerBatch: 1, StatusDist: "OK:100"}).Validate())
}

func TestGenerator_RoundRobin(t *testing.T) {
	g, err := New(Config{
		Stations:         []string{"AAK", "ABC", "BOSA"},
		StationGroups:    []string{"ALL_1"},
		StationsPerBatch: 2,
		Seed:             42,
	})
	require.NoError(t, err)

	now := time.UnixMilli(1575410988600)
	first := g.Generate(now)
	second := g.Generate(now)

	names := func(b *events.StationAndGroupSoh) []string {
		var out []string
		for _, r := range b.StationRecords {
			out = append(out, r.StationName)
		}
		return out
	}
	assert.Equal(t, []string{"AAK", "ABC"}, names(first))
	assert.Equal(t, []string{"BOSA", "AAK"}, names(second))
	assert.False(t, first.IsUpdateResponse)
	require.Len(t, first.StationGroups, 1)
	assert.Equal(t, now.UnixMilli(), first.StationGroups[0].CapturedAtMs)

	assert.NotEqual(t, first.StationRecords[0].UUID, second.StationRecords[1].UUID)
}

func TestGenerator_AllBadStation(t *testing.T) {
	g, err := New(Config{
		Stations:         []string{"AAK"},
		Channels:         []string{"BHZ"},
		MonitorTypes:     []string{"MISSING"},
		StatusDist:       "BAD:100",
		StationsPerBatch: 1,
		Seed:             1,
	})
	require.NoError(t, err)

	rec := g.Generate(time.Now()).StationRecords[0]
	assert.Equal(t, events.StatusBad, rec.StatusSummary)
	assert.True(t, rec.NeedsAttention)
	assert.True(t, rec.NeedsAcknowledgement)
	require.Len(t, rec.ChannelRecords, 1)
	assert.Equal(t, "AAK.BHZ", rec.ChannelRecords[0].ChannelName)

	mv := rec.ChannelRecords[0].MonitorValues[0]
	assert.Equal(t, events.StatusBad, mv.Status)
	assert.True(t, mv.HasUnacknowledgedChanges)
	require.NotNil(t, mv.Value)
	assert.GreaterOrEqual(t, *mv.Value, thresholdBad)

	changes := rec.UnacknowledgedChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, "MISSING", changes[0].MonitorType)
}

func TestGenerator_SeededIsDeterministic(t *testing.T) {
	cfg := Config{Stations: []string{"AAK", "ABC"}, StationsPerBatch: 2, Seed: 7}
	a, err := New(cfg)
	require.NoError(t, err)
	b, err := New(cfg)
	require.NoError(t, err)

	now := time.Now()
	ra, rb := a.Generate(now).StationRecords, b.Generate(now).StationRecords
	for i := range ra {
		assert.Equal(t, ra[i].StatusSummary, rb[i].StatusSummary)
		assert.Equal(t, *ra[i].ChannelRecords[0].MonitorValues[0].Value, *rb[i].ChannelRecords[0].MonitorValues[0].Value)
	}
}

type fakePublisher struct {
	mu      sync.Mutex
	batches []*events.StationAndGroupSoh
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, batch *events.StationAndGroupSoh) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, batch)
	return nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	published int
	errors    int
}

func (f *fakeMetrics) RecordPublished() { f.mu.Lock(); f.published++; f.mu.Unlock() }
func (f *fakeMetrics) RecordError()     { f.mu.Lock(); f.errors++; f.mu.Unlock() }

func TestRunner_StopsAfterDuration(t *testing.T) {
	g, err := New(Config{Stations: []string{"AAK"}, StationsPerBatch: 1, Seed: 3})
	require.NoError(t, err)
	pub := &fakePublisher{}
	m := &fakeMetrics{}

	sent, err := NewRunner(g, pub, m).Run(context.Background(), 200, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Greater(t, sent, 0)
	assert.Len(t, pub.batches, sent)
	assert.Equal(t, sent, m.published)
}

func TestRunner_CancelledContext(t *testing.T) {
	g, err := New(Config{Stations: []string{"AAK"}, StationsPerBatch: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent, err := NewRunner(g, &fakePublisher{}, nil).Run(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestRunner_PublishError(t *testing.T) {
	g, err := New(Config{Stations: []string{"AAK"}, StationsPerBatch: 1})
	require.NoError(t, err)
	m := &fakeMetrics{}

	_, err = NewRunner(g, &fakePublisher{err: errors.New("broker down")}, m).Run(context.Background(), 100, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 1, m.errors)
}

func TestRunner_InvalidRate(t *testing.T) {
	g, err := New(Config{Stations: []string{"AAK"}, StationsPerBatch: 1})
	require.NoError(t, err)
	_, err = NewRunner(g, &fakePublisher{}, nil).Run(context.Background(), 0, time.Second)
	assert.Error(t, err)
}
