package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Event describes the outcome of a completed mutation, consumed by any
// presentation listener instead of shared toast state.
type Event struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Publisher is the abstraction over different backends.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Memory is a channel-backed feed for single-process deployments.
type Memory struct {
	ch chan Event
}

// NewMemory creates a bounded in-memory feed.
func NewMemory(size int) *Memory {
	return &Memory{ch: make(chan Event, size)}
}

// Publish delivers an event; when no listener keeps up the event is dropped
// rather than stalling the mutation that produced it.
func (m *Memory) Publish(ctx context.Context, evt Event) error {
	select {
	case m.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Subscribe returns the feed channel. Events go to whichever listener reads
// first; run one stream consumer per process.
func (m *Memory) Subscribe() <-chan Event {
	return m.ch
}

// Redis broadcasts events over a pub/sub channel so every frontend instance
// sees outcomes from every API instance.
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis builds a pub/sub backed feed.
func NewRedis(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = "institute:events"
	}
	return &Redis{client: client, channel: channel}
}

// Publish broadcasts one event.
func (r *Redis) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Subscribe streams events published by any instance.
func (r *Redis) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event)
	sub := r.client.Subscribe(ctx, r.channel)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
					out <- evt
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
