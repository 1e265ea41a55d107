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

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS backend.
type NATSConfig struct {
	URL             string
	Name            string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	AckWaitTimeout  time.Duration
	CloseTimeout    time.Duration
}

// DefaultNATSConfig returns defaults for a local NATS server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:             natsgo.DefaultURL,
		Name:            "relaychat",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		AckWaitTimeout:  30 * time.Second,
		CloseTimeout:    30 * time.Second,
	}
}

// WatermillBus adapts a watermill publisher/subscriber pair to Bus.
type WatermillBus struct {
	name       string
	publisher  message.Publisher
	subscriber message.Subscriber
	healthy    func() bool
	closers    []func() error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewNATSBus connects to NATS and uses core pub/sub with JetStream disabled.
// No queue group is set, so every process receives every message.
func NewNATSBus(cfg NATSConfig, logger watermill.LoggerAdapter) (*WatermillBus, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	nc, err := natsgo.Connect(cfg.URL,
		natsgo.Name(cfg.Name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}

	jetStream := wmNats.JetStreamConfig{Disabled: true}

	pubCfg := wmNats.PublisherConfig{
		URL:       cfg.URL,
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: jetStream,
	}
	pub, err := wmNats.NewPublisherWithNatsConn(nc, pubCfg.GetPublisherPublishConfig(), logger)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	subCfg := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		SubscribeTimeout: cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        jetStream,
	}
	sub, err := wmNats.NewSubscriberWithNatsConn(nc, subCfg.GetSubscriberSubscriptionConfig(), logger)
	if err != nil {
		_ = pub.Close()
		nc.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &WatermillBus{
		name:       "nats",
		publisher:  pub,
		subscriber: sub,
		healthy:    nc.IsConnected,
		closers: []func() error{
			sub.Close,
			pub.Close,
			func() error { nc.Close(); return nil },
		},
	}, nil
}

// NewGoChannel creates an in-process pub/sub. Share one instance between
// buses to simulate several processes on one bus. Publish waits for every
// subscriber to ack so publication order is kept.
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

// NewMemoryBus wraps a GoChannel. A nil ch creates a private one owned by
// the bus.
func NewMemoryBus(ch *gochannel.GoChannel) *WatermillBus {
	b := &WatermillBus{name: "memory"}
	if ch == nil {
		ch = NewGoChannel(nil)
		b.closers = []func() error{ch.Close}
	}
	b.publisher = ch
	b.subscriber = ch
	b.healthy = func() bool { return !b.closed.Load() }
	return b
}

// Name implements Bus.
func (b *WatermillBus) Name() string { return b.name }

// Healthy implements Bus.
func (b *WatermillBus) Healthy() bool {
	return !b.closed.Load() && b.healthy()
}

// Publish implements Bus.
func (b *WatermillBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	// A disconnected client would buffer the publish for reconnect and
	// report success; fail fast so the caller falls back.
	if !b.healthy() {
		return ErrBusUnavailable
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.publisher.Publish(channel, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe implements Bus. Messages are acked as soon as they are handed
// over; the relay gives no redelivery guarantees.
func (b *WatermillBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	messages, err := b.subscriber.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			payload := msg.Payload
			msg.Ack()
			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close implements Bus. Safe to call more than once.
func (b *WatermillBus) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		for _, closeFn := range b.closers {
			if err := closeFn(); err != nil && b.closeErr == nil {
				b.closeErr = err
			}
		}
	})
	return b.closeErr
}
