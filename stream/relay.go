package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRelayChannel = "civicsync:events"

// envelope wraps a relayed event with its source instance so an instance
// does not re-deliver its own broadcasts.
type envelope struct {
	InstanceID string `json:"instanceId"`
	Event      Event  `json:"event"`
}

// Relay fans events out across instances over a Redis pub/sub channel.
// Local broadcasts are published to the channel; events published by other
// instances are re-broadcast on the local bus.
type Relay struct {
	client     *redis.Client
	bus        *Bus
	channel    string
	instanceID string
}

func NewRelay(client *redis.Client, bus *Bus, channel string) *Relay {
	if channel == "" {
		channel = defaultRelayChannel
	}
	return &Relay{
		client:     client,
		bus:        bus,
		channel:    channel,
		instanceID: uuid.NewString(),
	}
}

// Publish sends an event to the relay channel for other instances.
func (r *Relay) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(envelope{InstanceID: r.instanceID, Event: event})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		slog.Error("failed to publish stream event", "channel", r.channel, "error", err)
		return err
	}
	return nil
}

// Run consumes relayed events until ctx is cancelled, re-broadcasting events
// that originated on other instances.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("dropping malformed relay event", "error", err)
				continue
			}
			if env.InstanceID == r.instanceID {
				continue
			}
			r.bus.Broadcast(env.Event)
		}
	}
}
