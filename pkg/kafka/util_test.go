package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		want    []string
	}{
		{name: "empty", brokers: "", want: nil},
		{name: "single", brokers: "localhost:9092", want: []string{"localhost:9092"}},
		{name: "multiple with spaces", brokers: "a:9092, b:9092 ,c:9092", want: []string{"a:9092", "b:9092", "c:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBrokers(tt.brokers))
		})
	}
}

func TestValidateConsumerParams(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		groupID string
		errMsg  string
	}{
		{name: "valid", brokers: "localhost:9092", topic: "soh.ui-materialized", groupID: "g"},
		{name: "empty brokers", topic: "t", groupID: "g", errMsg: "brokers cannot be empty"},
		{name: "empty topic", brokers: "b", groupID: "g", errMsg: "topic cannot be empty"},
		{name: "empty groupID", brokers: "b", topic: "t", errMsg: "groupID cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConsumerParams(tt.brokers, tt.topic, tt.groupID)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestValidateProducerParams(t *testing.T) {
	assert.NoError(t, ValidateProducerParams("b", "ack", "quiet"))
	assert.EqualError(t, ValidateProducerParams("", "ack"), "brokers cannot be empty")
	assert.EqualError(t, ValidateProducerParams("b"), "topic cannot be empty")
	assert.EqualError(t, ValidateProducerParams("b", "ack", ""), "topic cannot be empty")
}

func TestNewReaderConfig(t *testing.T) {
	cfg := NewReaderConfig([]string{"localhost:9092"}, "soh", "group")

	assert.Equal(t, "soh", cfg.Topic)
	assert.Equal(t, "group", cfg.GroupID)
	assert.Equal(t, MaxPollWait, cfg.MaxWait)
	assert.Equal(t, CommitInterval, cfg.CommitInterval)
	assert.Equal(t, kafka.LastOffset, cfg.StartOffset)
}
