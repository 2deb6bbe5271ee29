// Package consumer provides Kafka consumer functionality for the SOH topic.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"soh-gateway/internal/events"
	kafkautil "soh-gateway/pkg/kafka"
)

// Message is one decoded Kafka message from the SOH topic.
type Message struct {
	Topic   string
	Batches []events.StationAndGroupSoh
	Raw     *kafka.Message
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer wraps a Kafka reader and decodes SOH batches.
type Consumer struct {
	reader messageReader
	topic  string
}

// NewConsumer creates a new Kafka consumer with the specified brokers, topic, and group ID.
// Offsets are committed periodically by the reader.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	cfg := kafkautil.NewReaderConfig(brokerList, topic, groupID)
	kafkautil.LogReaderConfig(cfg)

	return &Consumer{
		reader: kafka.NewReader(cfg),
		topic:  topic,
	}, nil
}

// ReadMessage reads the next message from Kafka and decodes its SOH batches.
// On a decode failure the raw message is still returned with the error.
func (c *Consumer) ReadMessage(ctx context.Context) (*Message, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	topic := msg.Topic
	if topic == "" {
		topic = c.topic
	}

	batches, err := DecodeBatches(msg.Value)
	if err != nil {
		return &Message{Topic: topic, Raw: &msg}, fmt.Errorf("failed to decode SOH batch: %w", err)
	}

	return &Message{Topic: topic, Batches: batches, Raw: &msg}, nil
}

// DecodeBatches decodes a message value holding either a single
// StationAndGroupSoh object or an array of them.
func DecodeBatches(value []byte) ([]events.StationAndGroupSoh, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil, errors.New("empty message value")
	}

	if trimmed[0] == '[' {
		var batches []events.StationAndGroupSoh
		if err := json.Unmarshal(trimmed, &batches); err != nil {
			return nil, err
		}
		return batches, nil
	}

	var batch events.StationAndGroupSoh
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, err
	}
	return []events.StationAndGroupSoh{batch}, nil
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	slog.Info("Kafka consumer closed successfully")
	return nil
}
