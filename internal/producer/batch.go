package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"soh-gateway/internal/events"
	kafkautil "soh-gateway/pkg/kafka"
)

// BatchProducer publishes SOH batches to the SOH topic in the same shape the
// upstream analysis engine does.
type BatchProducer struct {
	writer messageWriter
	topic  string
}

// NewBatchProducer creates a producer for the SOH topic.
func NewBatchProducer(brokers, topic string) (*BatchProducer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)
	slog.Info("Initializing Kafka batch producer", "brokers", brokerList, "topic", topic)
	kafkautil.EnsureTopic(brokerList[0], topic)

	return &BatchProducer{writer: newWriter(brokerList), topic: topic}, nil
}

// Publish serializes a batch and writes it keyed by its first station.
func (p *BatchProducer) Publish(ctx context.Context, batch *events.StationAndGroupSoh) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal SOH batch: %w", err)
	}

	var key []byte
	if len(batch.StationRecords) > 0 {
		key = []byte(batch.StationRecords[0].StationName)
	}

	return writeMessage(ctx, p.writer, kafka.Message{
		Topic: p.topic,
		Key:   key,
		Value: payload,
		Headers: []kafka.Header{
			{Key: "is_update_response", Value: []byte(strconv.FormatBool(batch.IsUpdateResponse))},
		},
	})
}

// Close gracefully closes the Kafka writer.
func (p *BatchProducer) Close() error {
	return closeWriter(p.writer)
}
