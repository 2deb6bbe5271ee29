package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"soh-gateway/internal/events"
)

// DefaultRedisBuffer is the number of views a RedisSink queues before
// dropping.
const DefaultRedisBuffer = 32

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink mirrors every feed view onto a Redis pub/sub channel so other
// gateway replicas and tools can follow the feed. Deliver only enqueues;
// Run performs the Redis writes.
type RedisSink struct {
	client  redisPublisher
	channel string
	queue   chan []byte
}

// NewRedisSink creates a sink publishing to channel.
func NewRedisSink(client redisPublisher, channel string, buffer int) *RedisSink {
	if buffer < 1 {
		buffer = DefaultRedisBuffer
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		queue:   make(chan []byte, buffer),
	}
}

// Deliver serializes view and queues it without blocking.
func (s *RedisSink) Deliver(view events.StationAndGroupSoh) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal SOH view: %w", err)
	}
	select {
	case s.queue <- payload:
		return nil
	default:
		return ErrSubscriberFull
	}
}

// Run publishes queued views until ctx is cancelled.
func (s *RedisSink) Run(ctx context.Context) error {
	slog.Info("Starting Redis feed mirror", "channel", s.channel)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Redis feed mirror stopped", "channel", s.channel)
			return nil
		case payload := <-s.queue:
			if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to publish SOH view to Redis",
					"channel", s.channel,
					"error", err,
				)
			}
		}
	}
}
