// Package events carries session status events from pipeline workers to connected
// clients. Events travel over Redis pub/sub so any API instance can serve a client
// regardless of which worker runs the session.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "session:"
	publishTimeout = 5 * time.Second
)

// Event is one message on a session channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    int64           `json:"at"`
}

// Channel returns the pub/sub channel for a session.
func Channel(sessionID uuid.UUID) string {
	return channelPrefix + sessionID.String()
}

// NewEvent encodes data into an Event stamped with at.
func NewEvent(event string, data any, at time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s data: %w", event, err)
	}
	return Event{Event: event, Data: raw, At: at.Unix()}, nil
}

// RedisBus publishes and subscribes session events through Redis.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBus creates a Redis-backed event bus.
func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger}
}

// Publish sends an event on the session's channel.
func (b *RedisBus) Publish(ctx context.Context, sessionID uuid.UUID, event string, data any) error {
	ev, err := NewEvent(event, data, time.Now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, Channel(sessionID), body).Err()
}

// Subscribe streams the session's events until ctx is done. The returned channel is
// closed when the subscription ends.
func (b *RedisBus) Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, Channel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, 16)
	msgs := pubsub.Channel()
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Debug("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
