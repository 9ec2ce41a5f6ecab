package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"journeymap/api/internal/logging"
)

const EventsChannel = "journey:board-events"

// Broker moves events between API instances.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	// Run delivers every published event to deliver until ctx is done.
	Run(ctx context.Context, deliver func(Event))
}

// LocalBroker delivers events inside this process.
type LocalBroker struct {
	events chan Event
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{events: make(chan Event, 1024)}
}

func (b *LocalBroker) Publish(ctx context.Context, ev Event) error {
	select {
	case b.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBroker) Run(ctx context.Context, deliver func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			deliver(ev)
		}
	}
}

// RedisBroker fans events out through Redis pub/sub so every instance sees
// every board's events.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  *logging.Logger
}

func NewRedisBroker(client *redis.Client, logger *logging.Logger) *RedisBroker {
	return &RedisBroker{client: client, channel: EventsChannel, logger: logging.OrNop(logger).Named("realtime")}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Run(ctx context.Context, deliver func(Event)) {
	for {
		sub := b.client.Subscribe(ctx, b.channel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("drop malformed board event", "error", err)
					continue
				}
				deliver(ev)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("board event subscription closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
