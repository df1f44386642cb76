package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel used for added books
const DefaultChannel = "libraryql:BOOK_ADDED"

// RedisRelay publishes events to a Redis channel and passes every event received on that
// channel (including its own) to a local broadcaster.  Each process running a relay on the
// same channel therefore delivers every event to its own subscribers.
type RedisRelay[T any] struct {
	client  *redis.Client
	channel string
	local   *Broadcaster[T]
	log     *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisRelay creates a relay (call Start to begin receiving)
func NewRedisRelay[T any](client *redis.Client, channel string, local *Broadcaster[T], log *zap.Logger) *RedisRelay[T] {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay[T]{client: client, channel: channel, local: local, log: log}
}

// Publish sends the event (as JSON) to all relays on the channel
func (r *RedisRelay[T]) Publish(ctx context.Context, event T) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w encoding event", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w publishing to %s", err, r.channel)
	}
	return nil
}

// Start subscribes to the channel.  It returns once the subscription is confirmed; events
// are then relayed until ctx is cancelled or Close is called.
func (r *RedisRelay[T]) Start(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("%w subscribing to %s", err, r.channel)
	}
	r.mu.Lock()
	r.pubsub = ps
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = r.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.log.Error("invalid event received", zap.String("channel", r.channel), zap.Error(err))
					continue
				}
				if err := r.local.Publish(ctx, event); err != nil {
					r.log.Debug("relaying event", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Close stops receiving events (the Redis client is not closed)
func (r *RedisRelay[T]) Close() error {
	r.mu.Lock()
	ps := r.pubsub
	r.pubsub = nil
	r.mu.Unlock()
	if ps == nil {
		return nil
	}
	return ps.Close()
}

// Wait blocks until the relay goroutine has finished (after Close or cancellation)
func (r *RedisRelay[T]) Wait() { r.wg.Wait() }
