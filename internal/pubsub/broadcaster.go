// Package pubsub delivers events (eg a book being added) to every subscriber.  A Broadcaster
// works within the process; a RedisRelay extends it across processes.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultBuffer is the number of events queued for a subscriber that is not keeping up
const DefaultBuffer = 16

// ErrClosed is returned when publishing to a closed broadcaster
var ErrClosed = errors.New("broadcaster is closed")

// Broadcaster sends each published event to all current subscribers.  Every subscriber has
// its own bounded queue; when it is full the oldest queued event is discarded so that
// Publish never blocks.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]chan T
	nextID uint64
	closed bool
	done   chan struct{}

	buffer  int
	dropped atomic.Uint64
	log     *zap.Logger
}

// NewBroadcaster makes a broadcaster with a queue of buffer events per subscriber
func NewBroadcaster[T any](buffer int, log *zap.Logger) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster[T]{
		subs:   make(map[uint64]chan T),
		done:   make(chan struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe returns a channel that receives every event published from now on.  The
// channel is closed when ctx is cancelled or the broadcaster is closed.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.unsubscribe(id)
	}()
	return ch
}

func (b *Broadcaster[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish queues the event for every subscriber
func (b *Broadcaster[T]) Publish(_ context.Context, event T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for id, ch := range b.subs {
		if n := push(ch, event); n > 0 {
			total := b.dropped.Add(n)
			b.log.Warn("subscriber queue full - dropped oldest event",
				zap.Uint64("subscriber", id), zap.Uint64("dropped", total))
		}
	}
	return nil
}

// push adds the event to the queue, discarding from the front until there is room.
// It returns the number of events discarded.
func push[T any](ch chan T, event T) (dropped uint64) {
	for {
		select {
		case ch <- event:
			return dropped
		default:
		}
		select {
		case <-ch:
			dropped++
		default:
		}
	}
}

// Dropped returns how many events have been discarded because subscribers fell behind
func (b *Broadcaster[T]) Dropped() uint64 { return b.dropped.Load() }

// Subscribers returns the number of current subscribers
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends all subscriptions.  Further events cannot be published.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
