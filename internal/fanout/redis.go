package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"skedit/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisTransport uses a single pub/sub channel.
type RedisTransport struct {
	client  *redis.Client
	channel string
	log     *logger.Logger

	sub *redis.PubSub
	wg  sync.WaitGroup
}

func NewRedisTransport(client *redis.Client, channel string, log *logger.Logger) *RedisTransport {
	return &RedisTransport{
		client:  client,
		channel: channel,
		log:     log,
	}
}

func (t *RedisTransport) Name() string {
	return "redis"
}

func (t *RedisTransport) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode presence envelope: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", t.channel, err)
	}
	return nil
}

func (t *RedisTransport) Start(ctx context.Context, deliver func(Envelope)) error {
	sub := t.client.Subscribe(ctx, t.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", t.channel, err)
	}
	t.sub = sub

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for msg := range sub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				t.log.Warn("Failed to decode presence envelope", "channel", msg.Channel, "error", err)
				continue
			}
			deliver(env)
		}
	}()
	return nil
}

func (t *RedisTransport) Close() error {
	if t.sub == nil {
		return nil
	}
	err := t.sub.Close()
	t.wg.Wait()
	return err
}
