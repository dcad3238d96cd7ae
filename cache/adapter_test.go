package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pantrysnap/server/cache"
	"github.com/pantrysnap/server/cache/local"
	cacheredis "github.com/pantrysnap/server/cache/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalPubSub(t *testing.T, buf int) cache.PubSub {
	t.Helper()
	ps, err := cache.NewPubSub(cache.CacheConfig{LocalPubSubBuf: buf})
	require.NoError(t, err)
	return ps
}

func TestPubSubRoundTrip(t *testing.T) {
	ps := newLocalPubSub(t, 8)
	ctx := context.Background()

	msgs, cancel, err := ps.Subscribe(ctx, "ch")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "ch", "payload"))

	select {
	case msg := <-msgs:
		assert.Equal(t, "ch", msg.Channel)
		assert.Equal(t, "payload", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	ps := newLocalPubSub(t, 8)
	ctx, cancelCtx := context.WithCancel(context.Background())

	msgs, unsub, err := ps.Subscribe(ctx, "ch")
	require.NoError(t, err)
	defer unsub()

	// Cancelling the subscription context alone must end the stream,
	// even if the caller never reads another message.
	cancelCtx()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-msgs:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	ps := newLocalPubSub(t, 2)
	ctx := context.Background()

	msgs, cancel, err := ps.Subscribe(ctx, "ch")
	require.NoError(t, err)
	defer cancel()

	// Nobody reads while we publish far past the buffer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = ps.Publish(ctx, "ch", fmt.Sprintf("m%d", i))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// Drain until quiet, then the stream still carries new messages.
drain:
	for {
		select {
		case <-msgs:
		case <-time.After(100 * time.Millisecond):
			break drain
		}
	}
	require.NoError(t, ps.Publish(ctx, "ch", "after"))
	select {
	case msg := <-msgs:
		assert.Equal(t, "after", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("message lost after drain")
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, cache.IsNotFound(local.ErrNotFound))
	assert.True(t, cache.IsNotFound(cacheredis.ErrNotFound))
	assert.True(t, cache.IsNotFound(fmt.Errorf("get: %w", local.ErrNotFound)))
	assert.False(t, cache.IsNotFound(errors.New("connection refused")))
	assert.False(t, cache.IsNotFound(nil))
}
