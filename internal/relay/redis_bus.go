// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/relaychat/internal/logging"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	PingTimeout  time.Duration
	PoolSize     int
	ChannelDepth int
}

// DefaultRedisConfig returns defaults for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		PingTimeout:  time.Second,
		PoolSize:     10,
		ChannelDepth: 100,
	}
}

// RedisBus is a Bus over Redis PUBLISH/SUBSCRIBE.
type RedisBus struct {
	client *redis.Client
	cfg    RedisConfig

	mu      sync.Mutex
	pubsubs []*redis.PubSub
	closed  atomic.Bool
}

// NewRedisBus creates the client. The server does not have to be reachable
// yet; publishes fail and fall back until it is.
func NewRedisBus(cfg RedisConfig) *RedisBus {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = time.Second
	}
	if cfg.ChannelDepth <= 0 {
		cfg.ChannelDepth = 100
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})
	return &RedisBus{client: client, cfg: cfg}
}

// Name implements Bus.
func (b *RedisBus) Name() string { return "redis" }

// Healthy implements Bus with a bounded PING.
func (b *RedisBus) Healthy() bool {
	if b.closed.Load() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.PingTimeout)
	defer cancel()
	return b.client.Ping(ctx).Err() == nil
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe implements Bus. The subscription is confirmed before returning.
func (b *RedisBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe to %s: %w", channel, err)
	}

	b.mu.Lock()
	b.pubsubs = append(b.pubsubs, pubsub)
	b.mu.Unlock()

	out := make(chan []byte, b.cfg.ChannelDepth)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					logging.Debug().Str("channel", channel).Msg("redis pubsub channel closed")
					return
				}
				select {
				case out <- []byte(msg.Payload):
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

// Close implements Bus.
func (b *RedisBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	for _, ps := range b.pubsubs {
		_ = ps.Close()
	}
	b.pubsubs = nil
	b.mu.Unlock()
	return b.client.Close()
}
