// Package processor provides SOH ingestion processing orchestration.
package processor

import (
	"context"

	"soh-gateway/internal/consumer"
	"soh-gateway/internal/events"
	"soh-gateway/internal/publisher"
)

// MessageReader reads SOH messages from a message queue.
type MessageReader interface {
	// ReadMessage reads the next message and returns its decoded batches.
	// A decode failure returns the message alongside the error.
	ReadMessage(ctx context.Context) (*consumer.Message, error)

	// Close closes the reader and releases resources.
	Close() error
}

// SohStore is the cache the processor writes into.
type SohStore interface {
	MarkArrival()
	SetStationGroups(groups []events.StationGroupStatus)
	Upsert(rec events.StationSoh, isUpdateResponse bool) (bool, error)
}

// ViewPublisher delivers views to feed subscribers.
type ViewPublisher interface {
	Publish(view events.StationAndGroupSoh, kind publisher.Kind)
}
