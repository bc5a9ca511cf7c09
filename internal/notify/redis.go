package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

// DefaultStream is the Redis stream notifications are appended to.
const DefaultStream = "ticketing:notifications"

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisPublisher appends each notification to a Redis stream as a CBOR
// payload, with the id and kind duplicated as plain fields for filtering.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

type RedisOption func(*RedisPublisher)

// WithMaxLen trims the stream to roughly n entries.
func WithMaxLen(n int64) RedisOption {
	return func(p *RedisPublisher) {
		p.maxLen = n
	}
}

func NewRedisPublisher(client *redis.Client, stream string, opts ...RedisOption) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	p := &RedisPublisher{client: client, stream: stream}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisPublisher) Stream() string {
	return p.stream
}

// Publish writes every notification in one pipeline round trip.
func (p *RedisPublisher) Publish(ctx context.Context, notes ...domain.Notification) error {
	if len(notes) == 0 {
		return nil
	}

	args := make([]*redis.XAddArgs, 0, len(notes))
	for _, n := range notes {
		payload, err := Encode(n)
		if err != nil {
			return err
		}
		args = append(args, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: p.maxLen > 0,
			Values: map[string]any{
				"id":      n.ID,
				"kind":    string(n.Kind),
				"payload": payload,
			},
		})
	}

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range args {
			pipe.XAdd(ctx, a)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish notifications to redis: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
