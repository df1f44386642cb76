package pubsub_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/andrewwphillips/libraryql/internal/pubsub"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Title  string
	Genres []string
}

func TestRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// two "processes" sharing the same Redis
	var relays []*pubsub.RedisRelay[event]
	var subs []<-chan event
	for i := 0; i < 2; i++ {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		local := pubsub.NewBroadcaster[event](4, nil)
		defer local.Close()
		relay := pubsub.NewRedisRelay(client, "", local, nil)
		require.NoError(t, relay.Start(ctx))
		defer relay.Close()
		relays = append(relays, relay)
		subs = append(subs, local.Subscribe(ctx))
	}

	sent := event{Title: "Clean Code", Genres: []string{"refactoring"}}
	require.NoError(t, relays[0].Publish(ctx, sent))
	for _, ch := range subs {
		got, ok := receive(t, ch)
		assert.True(t, ok)
		assert.Equal(t, sent, got)
	}
}

func TestRedisRelayBadPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	local := pubsub.NewBroadcaster[event](4, nil)
	defer local.Close()
	relay := pubsub.NewRedisRelay(client, "events", local, nil)
	require.NoError(t, relay.Start(ctx))
	ch := local.Subscribe(ctx)

	mr.Publish("events", "not json") // skipped
	require.NoError(t, relay.Publish(ctx, event{Title: "Refactoring"}))
	got, _ := receive(t, ch)
	assert.Equal(t, "Refactoring", got.Title)

	require.NoError(t, relay.Close())
	relay.Wait()
}

func TestRedisRelayUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	relay := pubsub.NewRedisRelay(client, "", pubsub.NewBroadcaster[event](1, nil), nil)
	assert.Error(t, relay.Start(context.Background()))
	assert.Error(t, relay.Publish(context.Background(), event{}))
}
