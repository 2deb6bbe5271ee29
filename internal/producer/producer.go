// Package producer publishes acknowledgement and quiet events to Kafka, and
// SOH batches for local simulation.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"soh-gateway/internal/events"
	kafkautil "soh-gateway/pkg/kafka"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a single Kafka writer shared by the acknowledgement and
// quiet topics. Each message carries its own topic.
type Producer struct {
	writer     messageWriter
	ackTopic   string
	quietTopic string
}

// NewProducer creates a new Kafka producer with the specified brokers and topics.
// Writes are synchronous so callers see the delivery error.
func NewProducer(brokers, ackTopic, quietTopic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, ackTopic, quietTopic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"ack_topic", ackTopic,
		"quiet_topic", quietTopic,
	)

	// Try to create topics if they don't exist (best effort)
	kafkautil.EnsureTopic(brokerList[0], ackTopic)
	kafkautil.EnsureTopic(brokerList[0], quietTopic)

	return &Producer{
		writer:     newWriter(brokerList),
		ackTopic:   ackTopic,
		quietTopic: quietTopic,
	}, nil
}

// PublishAcknowledgement serializes an acknowledgement event and publishes it
// keyed by station name.
func (p *Producer) PublishAcknowledgement(ctx context.Context, ack *events.AcknowledgementEvent) error {
	payload, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("failed to marshal acknowledgement: %w", err)
	}

	return p.write(ctx, kafka.Message{
		Topic: p.ackTopic,
		Key:   []byte(ack.AcknowledgedStation),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "acknowledged_by", Value: []byte(ack.AcknowledgedBy)},
		},
		Time: time.UnixMilli(ack.AcknowledgedAtMs),
	})
}

// PublishQuiet serializes a quiet event and publishes it keyed by station name.
func (p *Producer) PublishQuiet(ctx context.Context, quiet *events.QuietEvent) error {
	payload, err := json.Marshal(quiet)
	if err != nil {
		return fmt.Errorf("failed to marshal quiet event: %w", err)
	}

	return p.write(ctx, kafka.Message{
		Topic: p.quietTopic,
		Key:   []byte(quiet.StationName),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "quieted_by", Value: []byte(quiet.QuietedBy)},
		},
	})
}

func (p *Producer) write(ctx context.Context, msg kafka.Message) error {
	return writeMessage(ctx, p.writer, msg)
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	return closeWriter(p.writer)
}

// newWriter builds the synchronous writer shared by all producers. Messages
// carry their own topic and are partitioned by station name.
func newWriter(brokerList []string) *kafka.Writer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Balancer:     &kafka.Hash{}, // Key-based partitioning on station name
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"write_timeout", kafkautil.WriteTimeout,
		"required_acks", "RequireOne",
		"partition_key", "station_name (hashed)",
	)
	return writer
}

func writeMessage(ctx context.Context, w messageWriter, msg kafka.Message) error {
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka topic %s: %w", msg.Topic, err)
	}
	slog.Debug("Published message", "topic", msg.Topic, "key", string(msg.Key))
	return nil
}

func closeWriter(w messageWriter) error {
	slog.Info("Closing Kafka producer")
	if err := w.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	slog.Info("Kafka producer closed successfully")
	return nil
}
