package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"soh-gateway/internal/events"
	"soh-gateway/internal/publisher"
)

// Processor applies inbound SOH batches to the cache and publishes update
// responses immediately. Everything else is left for the batching scheduler.
type Processor struct {
	reader    MessageReader
	store     SohStore
	publisher ViewPublisher
	topic     string
	metrics   MetricsRecorder
	now       func() time.Time
}

// NewProcessor creates a new SOH ingestion processor with no-op metrics.
func NewProcessor(reader MessageReader, store SohStore, pub ViewPublisher, topic string) *Processor {
	return NewProcessorWithMetrics(reader, store, pub, topic, nil)
}

// NewProcessorWithMetrics creates a processor with the provided metrics recorder.
// If m is nil, a no-op implementation is used.
func NewProcessorWithMetrics(reader MessageReader, store SohStore, pub ViewPublisher, topic string, m MetricsRecorder) *Processor {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &Processor{
		reader:    reader,
		store:     store,
		publisher: pub,
		topic:     topic,
		metrics:   m,
		now:       time.Now,
	}
}

// ProcessSoh continuously reads SOH messages from the message queue and
// applies them to the cache.
func (p *Processor) ProcessSoh(ctx context.Context) error {
	slog.Info("Starting SOH processing loop", "topic", p.topic)

	for {
		select {
		case <-ctx.Done():
			slog.Info("SOH processing loop stopped")
			return nil
		default:
			msg, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.metrics.RecordError()
				if msg != nil {
					slog.Warn("Dropping malformed SOH message", "topic", msg.Topic, "error", err)
					continue
				}
				slog.Error("Failed to read SOH message", "error", err)
				continue
			}

			p.metrics.RecordReceived()
			start := p.now()
			p.HandleMessages(msg.Topic, msg.Batches)
			p.metrics.RecordProcessed(p.now().Sub(start))
		}
	}
}

// HandleMessages applies the batches of one inbound message. Batches from any
// topic other than the configured SOH topic are ignored. Returns the number
// of newly accepted non-update-response records.
func (p *Processor) HandleMessages(topic string, batches []events.StationAndGroupSoh) int {
	if topic != p.topic {
		slog.Warn("Received data for unknown topic", "topic", topic, "batches", len(batches))
		return 0
	}

	slog.Debug("Consuming SOH batches", "topic", topic, "batches", len(batches))
	p.store.MarkArrival()

	arrived := 0
	for i := range batches {
		arrived += p.handleBatch(&batches[i])
	}

	if len(batches) > 0 && len(batches[0].StationGroups) > 0 {
		sg := batches[0].StationGroups[0]
		slog.Debug("Station group capture time",
			"group_name", sg.GroupName,
			"captured_at", time.UnixMilli(sg.CapturedAtMs).UTC().Format(time.RFC3339Nano),
		)
	}
	return arrived
}

func (p *Processor) handleBatch(batch *events.StationAndGroupSoh) (arrived int) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.RecordError()
			slog.Warn("Error processing StationAndGroupSoh batch",
				"error", fmt.Sprint(r),
				"payload", payloadString(batch),
			)
		}
	}()

	if batch.IsUpdateResponse {
		p.metrics.IncrementCustom("update_responses")
		if len(batch.StationRecords) > 0 {
			slog.Info("Processing update response", "station_name", batch.StationRecords[0].StationName)
		}
	}

	p.store.SetStationGroups(batch.StationGroups)

	received := p.now()
	for i := range batch.StationRecords {
		if p.applyRecord(batch.StationRecords[i], batch.IsUpdateResponse, received) {
			arrived++
		}
	}

	if batch.IsUpdateResponse {
		groups := batch.StationGroups
		if groups == nil {
			groups = []events.StationGroupStatus{}
		}
		p.publisher.Publish(events.StationAndGroupSoh{
			StationGroups:    groups,
			StationRecords:   events.ClearChannels(batch.StationRecords),
			IsUpdateResponse: true,
		}, publisher.KindImmediate)
	}
	return arrived
}

// applyRecord upserts one record. A failure is logged with the record and
// does not affect the rest of the batch.
func (p *Processor) applyRecord(rec events.StationSoh, isUpdateResponse bool, received time.Time) (arrived bool) {
	defer func() {
		if r := recover(); r != nil {
			arrived = false
			p.metrics.RecordError()
			slog.Warn("Error processing station SOH record",
				"station_name", rec.StationName,
				"error", fmt.Sprint(r),
				"payload", payloadString(rec),
			)
		}
	}()

	accepted, err := p.store.Upsert(rec, isUpdateResponse)
	if err != nil {
		p.metrics.RecordError()
		slog.Warn("Failed to apply station SOH record",
			"station_name", rec.StationName,
			"uuid", rec.UUID,
			"error", err,
			"payload", payloadString(rec),
		)
		return false
	}
	if !accepted {
		p.metrics.IncrementCustom("duplicates_dropped")
		return false
	}

	p.metrics.IncrementCustom("records_accepted")
	if isUpdateResponse {
		return false
	}

	slog.Info("Timing point B: SOH object received",
		"uuid", rec.UUID,
		"station_name", rec.StationName,
		"received_at", received.UTC().Format(time.RFC3339Nano),
		"captured_at", time.UnixMilli(rec.CapturedAtMs).UTC().Format(time.RFC3339Nano),
	)
	return true
}

func payloadString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
