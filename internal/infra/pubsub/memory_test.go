package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestMemory_OrderedPerTopic(t *testing.T) {
	hub := NewMemory()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "table-session-1")
	require.NoError(t, err)
	other, err := hub.Subscribe(ctx, "table-session-2")
	require.NoError(t, err)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, hub.Broadcast(ctx, "table-session-1", []byte(p)))
	}

	assert.Equal(t, "a", string(receive(t, sub)))
	assert.Equal(t, "b", string(receive(t, sub)))
	assert.Equal(t, "c", string(receive(t, sub)))
	assert.Empty(t, other.Messages())
}

func TestMemory_FanOut(t *testing.T) {
	hub := NewMemory()
	ctx := context.Background()

	first, _ := hub.Subscribe(ctx, "topic")
	second, _ := hub.Subscribe(ctx, "topic")

	require.NoError(t, hub.Broadcast(ctx, "topic", []byte("x")))

	assert.Equal(t, "x", string(receive(t, first)))
	assert.Equal(t, "x", string(receive(t, second)))
}

func TestMemory_UnsubscribeIdempotent(t *testing.T) {
	hub := NewMemory()
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "topic")
	require.NoError(t, err)

	assert.NoError(t, sub.Unsubscribe())
	assert.NoError(t, sub.Unsubscribe())

	_, ok := <-sub.Messages()
	assert.False(t, ok)

	assert.NoError(t, hub.Broadcast(ctx, "topic", []byte("late")))
}

func TestMemory_BroadcastHonoursContext(t *testing.T) {
	hub := NewMemory()
	_, err := hub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	for i := 0; i < memoryBuffer; i++ {
		require.NoError(t, hub.Broadcast(context.Background(), "topic", []byte("fill")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hub.Broadcast(ctx, "topic", []byte("overflow")), context.DeadlineExceeded)
}

func TestMemory_Close(t *testing.T) {
	hub := NewMemory()
	sub, err := hub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	require.NoError(t, hub.Close())

	_, ok := <-sub.Messages()
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Broadcast(context.Background(), "topic", nil), ErrClosed)
	_, err = hub.Subscribe(context.Background(), "topic")
	assert.ErrorIs(t, err, ErrClosed)
}
