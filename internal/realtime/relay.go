package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PubSubClient is the part of the go-redis client the relay uses.
type PubSubClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisRelay fans events out across instances. Publish writes the envelope
// to a Redis channel; Run subscribes to it and delivers every envelope into
// the local hub, including the ones this instance published.
type RedisRelay struct {
	client  PubSubClient
	channel string
	hub     *Hub
}

func NewRedisRelay(client PubSubClient, channel string, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: hub}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

// Run blocks until ctx ends or the subscription channel closes.
func (r *RedisRelay) Run(ctx context.Context) error {
	if r.hub == nil {
		return fmt.Errorf("redis relay on %s has no hub to deliver to", r.channel)
	}

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	log.Info().Str("channel", r.channel).Msg("realtime relay subscribed")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("redis subscription %s closed", r.channel)
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Warn().Err(err).Str("channel", r.channel).Msg("dropping undecodable realtime envelope")
		return
	}
	if !ValidNamespace(env.Namespace) || env.Room == "" || env.Event == "" {
		log.Warn().Str("namespace", env.Namespace).Str("room", env.Room).Msg("dropping unaddressed realtime envelope")
		return
	}
	if err := r.hub.Publish(ctx, env); err != nil {
		log.Error().Err(err).Msg("deliver realtime envelope")
	}
}
