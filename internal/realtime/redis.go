package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

// DefaultRedisChannel carries room broadcasts between server instances.
const DefaultRedisChannel = "feedback-board:rooms"

type redisEnvelope struct {
	Room  Room  `json:"room"`
	Event Event `json:"event"`
}

// RedisPublisher publishes room events on a Redis channel so that every
// instance running RelayFromRedis re-broadcasts them to its own sockets.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, room Room, evt Event) error {
	body, err := json.Marshal(redisEnvelope{Room: room, Event: evt})
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// RelayFromRedis subscribes to channel and broadcasts every message on the
// registry's hub until ctx is cancelled. ready, when non-nil, is closed once
// the subscription is confirmed.
func RelayFromRedis(ctx context.Context, client *redis.Client, channel string, registry *Registry, logger *slog.Logger, ready chan<- struct{}) error {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("dropping malformed relay message", "error", err)
				continue
			}
			if !IsValidRoom(string(env.Room)) {
				continue
			}
			registry.GetOrInit().Broadcast(env.Room, env.Event)
		}
	}
}
