package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events to Redis pub/sub, one Redis channel per topic
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every topic
	Prefix string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisPublisher creates a publisher on an existing client
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Publish encodes the event and publishes it on its topic
func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.Publish(ctx, p.prefix+event.Topic(), payload).Err()
}

// Relay subscribes to topics on Redis and republishes every event it receives
// to the local publisher, until ctx is cancelled
func (p *RedisPublisher) Relay(ctx context.Context, local Publisher, topics ...string) error {
	channels := make([]string, 0, len(topics))
	for _, t := range topics {
		channels = append(channels, p.prefix+t)
	}

	pubsub := p.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			event, err := Decode([]byte(msg.Payload))
			if err != nil {
				slog.Warn("dropping undecodable event",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()))
				continue
			}
			if err := local.Publish(ctx, event); err != nil {
				slog.Warn("relay publish failed",
					slog.String("topic", event.Topic()),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Close closes the underlying client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
