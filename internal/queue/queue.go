// Package queue carries cache refresh notices between replicas.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TypeCacheReset asks every consumer to drop its cached source data.
const TypeCacheReset = "cache.reset"

// Message represents a notice on the bus.
type Message struct {
	ID   string
	Type string
	Body []byte
}

// NewMessage stamps a message with a fresh id.
func NewMessage(typ string, body []byte) Message {
	return Message{ID: uuid.NewString(), Type: typ, Body: body}
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
	Healthy(ctx context.Context) bool
	Close() error
}

// maxBackoff caps the wait between subscribe attempts.
const maxBackoff = 30 * time.Second

// Listen consumes q until ctx ends and calls handle for every message. A
// failed subscribe or a dropped subscription is retried, waiting backoff
// (doubled per failure, capped at maxBackoff) between attempts.
func Listen(ctx context.Context, q Queue, backoff time.Duration, handle func(Message)) {
	wait := backoff
	for {
		msgs, err := q.Consume(ctx)
		if err != nil {
			slog.Warn("bus subscribe failed, retrying", "error", err, "in", wait)
		} else {
			wait = backoff
			for msg := range msgs {
				handle(msg)
			}
			if ctx.Err() == nil {
				slog.Warn("bus subscription closed, resubscribing")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err != nil {
			wait = min(wait*2, maxBackoff)
		}
	}
}

// InMemory is a channel-backed bus for a single process.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory bus.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel that is closed when ctx ends.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *InMemory) Healthy(context.Context) bool { return true }

func (q *InMemory) Close() error { return nil }

// RedisPubSub broadcasts each message to every subscribed replica.
type RedisPubSub struct {
	client  *redis.Client
	channel string
}

// NewRedisPubSub connects to redis with short timeouts. Connection errors
// surface on first use.
func NewRedisPubSub(addr, channel string) *RedisPubSub {
	if channel == "" {
		channel = "presence:refresh"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisPubSub{client: client, channel: channel}
}

// Publish sends msg to the channel.
func (q *RedisPubSub) Publish(ctx context.Context, msg Message) error {
	if err := q.client.Publish(ctx, q.channel, serialize(msg)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", q.channel, err)
	}
	return nil
}

// Consume subscribes to the channel until ctx ends.
func (q *RedisPubSub) Consume(ctx context.Context) (<-chan Message, error) {
	sub := q.client.Subscribe(ctx, q.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", q.channel, err)
	}
	in := sub.Channel()
	out := make(chan Message)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- deserialize(m.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Healthy verifies redis connectivity.
func (q *RedisPubSub) Healthy(ctx context.Context) bool {
	return q.client.Ping(ctx).Err() == nil
}

func (q *RedisPubSub) Close() error { return q.client.Close() }

// serialize stores messages as ID|Type|Body.
func serialize(msg Message) string {
	return msg.ID + "|" + msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	parts := strings.SplitN(s, "|", 3)
	switch len(parts) {
	case 3:
		return Message{ID: parts[0], Type: parts[1], Body: []byte(parts[2])}
	case 2:
		return Message{Type: parts[0], Body: []byte(parts[1])}
	default:
		return Message{Body: []byte(s)}
	}
}
