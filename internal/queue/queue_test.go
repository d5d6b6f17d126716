package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_PublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	sent := NewMessage(TypeCacheReset, nil)
	require.NoError(t, q.Publish(ctx, sent))

	select {
	case got := <-msgs:
		assert.Equal(t, sent, got)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.True(t, q.Healthy(ctx))
	assert.NoError(t, q.Close())
}

func TestInMemory_ConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestInMemory_PublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), NewMessage(TypeCacheReset, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, NewMessage(TypeCacheReset, nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewMessage(TypeCacheReset, nil)
	b := NewMessage(TypeCacheReset, nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDeserialize(t *testing.T) {
	msg := Message{ID: "id-1", Type: TypeCacheReset, Body: []byte("by|admin")}
	assert.Equal(t, msg, deserialize(serialize(msg)))

	assert.Equal(t, Message{Type: "t", Body: []byte("b")}, deserialize("t|b"))
	assert.Equal(t, Message{Body: []byte("raw")}, deserialize("raw"))
}

// flakyQueue fails the first failures subscribe attempts, then delivers from
// an in-memory bus.
type flakyQueue struct {
	*InMemory
	mu       sync.Mutex
	failures int
	attempts int
}

func (q *flakyQueue) Consume(ctx context.Context) (<-chan Message, error) {
	q.mu.Lock()
	q.attempts++
	fail := q.attempts <= q.failures
	q.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return q.InMemory.Consume(ctx)
}

func TestListen_RetriesSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &flakyQueue{InMemory: NewInMemory(4), failures: 3}
	require.NoError(t, q.Publish(ctx, NewMessage(TypeCacheReset, nil)))

	got := make(chan Message, 1)
	done := make(chan struct{})
	go func() {
		Listen(ctx, q, time.Millisecond, func(m Message) { got <- m })
		close(done)
	}()

	select {
	case msg := <-got:
		assert.Equal(t, TypeCacheReset, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never subscribed")
	}
	q.mu.Lock()
	assert.Equal(t, 4, q.attempts)
	q.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
