package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soh-gateway/internal/events"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer("", "soh.ack", "soh.quiet")
	assert.EqualError(t, err, "brokers cannot be empty")

	_, err = NewProducer("localhost:9092", "soh.ack", "")
	assert.EqualError(t, err, "topic cannot be empty")
}

func TestProducer_PublishAcknowledgement(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, ackTopic: "soh.ack", quietTopic: "soh.quiet"}

	comment := "looked at it"
	ack := &events.AcknowledgementEvent{
		AcknowledgedStation: "AAK",
		AcknowledgedBy:      "analyst",
		AcknowledgedAtMs:    1575410988600,
		Comment:             &comment,
		AcknowledgedChanges: []events.AcknowledgedChange{{ChannelName: "AAK.BHZ", MonitorType: "MISSING"}},
	}
	require.NoError(t, p.PublishAcknowledgement(context.Background(), ack))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, "soh.ack", msg.Topic)
	assert.Equal(t, "AAK", string(msg.Key))

	var decoded events.AcknowledgementEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "analyst", decoded.AcknowledgedBy)
	require.NotNil(t, decoded.Comment)
	assert.Equal(t, comment, *decoded.Comment)
}

func TestProducer_PublishQuiet(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, ackTopic: "soh.ack", quietTopic: "soh.quiet"}

	require.NoError(t, p.PublishQuiet(context.Background(), &events.QuietEvent{
		StationName:  "AAK",
		ChannelName:  "AAK.BHZ",
		MonitorType:  "LAG",
		QuietUntilMs: 100,
		QuietedBy:    "analyst",
	}))

	require.Len(t, w.written, 1)
	assert.Equal(t, "soh.quiet", w.written[0].Topic)
	assert.Equal(t, "AAK", string(w.written[0].Key))
}

func TestProducer_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, ackTopic: "soh.ack", quietTopic: "soh.quiet"}

	err := p.PublishQuiet(context.Background(), &events.QuietEvent{StationName: "AAK"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soh.quiet")
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestBatchProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &BatchProducer{writer: w, topic: "soh.ui-materialized"}

	batch := &events.StationAndGroupSoh{
		StationRecords:   []events.StationSoh{{UUID: "v1", StationName: "AAK", StatusSummary: events.StatusBad}},
		IsUpdateResponse: true,
	}
	require.NoError(t, p.Publish(context.Background(), batch))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, "soh.ui-materialized", msg.Topic)
	assert.Equal(t, "AAK", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "true", string(msg.Headers[0].Value))

	var decoded events.StationAndGroupSoh
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.True(t, decoded.IsUpdateResponse)
	assert.Equal(t, "v1", decoded.StationRecords[0].UUID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestBatchProducer_EmptyBatchHasNoKey(t *testing.T) {
	w := &fakeWriter{}
	p := &BatchProducer{writer: w, topic: "soh.ui-materialized"}

	require.NoError(t, p.Publish(context.Background(), &events.StationAndGroupSoh{}))
	assert.Nil(t, w.written[0].Key)
}

func TestNewBatchProducer_Validation(t *testing.T) {
	_, err := NewBatchProducer("localhost:9092", "")
	assert.EqualError(t, err, "topic cannot be empty")
}
