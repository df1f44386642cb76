package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/andrewwphillips/libraryql/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero, false
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	b := pubsub.NewBroadcaster[int](4, nil)
	defer b.Close()

	ch1 := b.Subscribe(ctx)
	ch2 := b.Subscribe(ctx)
	require.NoError(t, b.Publish(ctx, 1))
	require.NoError(t, b.Publish(ctx, 2))

	for _, ch := range []<-chan int{ch1, ch2} {
		v, ok := receive(t, ch)
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		v, _ = receive(t, ch)
		assert.Equal(t, 2, v)
	}
}

func TestNoReplay(t *testing.T) {
	ctx := context.Background()
	b := pubsub.NewBroadcaster[string](0, nil)
	defer b.Close()

	require.NoError(t, b.Publish(ctx, "before"))
	ch := b.Subscribe(ctx)
	require.NoError(t, b.Publish(ctx, "after"))
	v, _ := receive(t, ch)
	assert.Equal(t, "after", v)
}

func TestDropOldest(t *testing.T) {
	ctx := context.Background()
	b := pubsub.NewBroadcaster[int](2, nil)
	defer b.Close()

	slow := b.Subscribe(ctx)
	for i := 1; i <= 5; i++ {
		require.NoError(t, b.Publish(ctx, i)) // never blocks
	}
	assert.Equal(t, uint64(3), b.Dropped())

	v, _ := receive(t, slow)
	assert.Equal(t, 4, v)
	v, _ = receive(t, slow)
	assert.Equal(t, 5, v)
}

func TestUnsubscribe(t *testing.T) {
	b := pubsub.NewBroadcaster[int](1, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	assert.Equal(t, 1, b.Subscribers())
	cancel()

	_, ok := receive(t, ch)
	assert.False(t, ok, "channel should be closed on cancel")
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	b := pubsub.NewBroadcaster[int](1, nil)
	ch := b.Subscribe(ctx)

	b.Close()
	b.Close() // second close is harmless
	_, ok := receive(t, ch)
	assert.False(t, ok, "channel should be closed by Close")
	assert.ErrorIs(t, b.Publish(ctx, 1), pubsub.ErrClosed)

	_, ok = receive(t, b.Subscribe(ctx))
	assert.False(t, ok, "subscribing to a closed broadcaster gives a closed channel")
}
