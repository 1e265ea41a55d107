// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/relaychat/internal/conversation"
	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/metrics"
	"github.com/tomtom215/relaychat/internal/models"
)

// Config tunes a BusRelay.
type Config struct {
	// PublishTimeout bounds one bus publish.
	PublishTimeout time.Duration
	Breaker        CircuitBreakerConfig
}

// DefaultConfig returns the relay defaults.
func DefaultConfig() Config {
	return Config{
		PublishTimeout: 2 * time.Second,
		Breaker:        DefaultCircuitBreakerConfig(),
	}
}

// BusRelay is a Relay over a Bus with local fallback.
type BusRelay struct {
	bus     Bus
	local   Deliverer
	breaker *gobreaker.CircuitBreaker[interface{}]
	cfg     Config

	// listening marks channels with an active subscription. Publishes on a
	// channel this process does not hear are also delivered locally.
	listening map[models.Channel]*atomic.Bool
}

// NewBusRelay creates a relay publishing on bus and delivering received
// messages to local.
func NewBusRelay(bus Bus, local Deliverer, cfg Config) *BusRelay {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "relay-" + bus.Name()
	}
	listening := make(map[models.Channel]*atomic.Bool)
	for _, ch := range models.Channels() {
		listening[ch] = &atomic.Bool{}
	}
	return &BusRelay{
		bus:       bus,
		local:     local,
		breaker:   NewCircuitBreaker(cfg.Breaker),
		cfg:       cfg,
		listening: listening,
	}
}

// Publish implements Relay. Validation errors are returned. Bus failures are
// logged and the message is delivered to local subscribers instead.
func (r *BusRelay) Publish(ctx context.Context, channel models.Channel, msg *models.ChatMessage) error {
	payload, topic, err := prepare(channel, msg)
	if err != nil {
		return err
	}

	if err := r.publishToBus(ctx, channel, payload); err != nil {
		metrics.RecordRelayFallback(channel.String())
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("channel", channel.String()).
			Str("topic", topic).
			Msg("relay publish failed, delivering locally")
		r.local.DeliverToTopic(topic, payload)
		return nil
	}
	metrics.RecordRelayPublish(channel.String())

	if !r.listening[channel].Load() {
		r.local.DeliverToTopic(topic, payload)
	}
	return nil
}

func (r *BusRelay) publishToBus(ctx context.Context, channel models.Channel, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.bus.Publish(ctx, channel.String(), payload)
	})
	return err
}

// Serve implements Relay. It subscribes to every channel and returns an
// error if any subscription ends before ctx is done, so a supervisor can
// restart it.
func (r *BusRelay) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	channels := models.Channels()
	streams := make([]<-chan []byte, 0, len(channels))
	defer func() {
		for _, ch := range channels {
			r.listening[ch].Store(false)
		}
	}()
	for _, ch := range channels {
		stream, err := r.bus.Subscribe(ctx, ch.String())
		if err != nil {
			return fmt.Errorf("relay subscribe %s: %w", ch, err)
		}
		r.listening[ch].Store(true)
		streams = append(streams, stream)
	}

	logging.Info().Str("mode", r.Mode()).Int("channels", len(channels)).Msg("relay listening")

	ended := make(chan models.Channel, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(ch models.Channel, stream <-chan []byte) {
			defer wg.Done()
			for payload := range stream {
				r.handle(ch, payload)
			}
			r.listening[ch].Store(false)
			ended <- ch
		}(ch, streams[i])
	}

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case ch := <-ended:
		err = fmt.Errorf("relay subscription %s closed", ch)
		logging.Error().Err(err).Msg("relay subscription lost")
	}
	cancel()
	wg.Wait()
	return err
}

// handle delivers one received payload. A bad payload is dropped and never
// stops the subscription.
func (r *BusRelay) handle(channel models.Channel, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordRelayMalformed(channel.String())
			logging.Error().Interface("panic", rec).Str("channel", channel.String()).Msg("recovered from panic in relay subscriber")
		}
	}()
	metrics.RecordRelayReceived(channel.String())

	msg, err := models.DecodeChatMessage(payload)
	if err != nil {
		r.dropMalformed(channel, payload, err)
		return
	}
	topic, err := conversation.DestinationFor(msg)
	if err != nil {
		r.dropMalformed(channel, payload, err)
		return
	}
	encoded, err := msg.Encode()
	if err != nil {
		r.dropMalformed(channel, payload, err)
		return
	}

	n := r.local.DeliverToTopic(topic, encoded)
	logging.Trace().Str("channel", channel.String()).Str("topic", topic).Int("delivered", n).Msg("relay delivery")
}

func (r *BusRelay) dropMalformed(channel models.Channel, payload []byte, err error) {
	metrics.RecordRelayMalformed(channel.String())
	const maxLogged = 256
	if len(payload) > maxLogged {
		payload = payload[:maxLogged]
	}
	logging.Warn().Err(err).Str("channel", channel.String()).Bytes("payload", payload).Msg("dropping malformed relay payload")
}

// Listening reports whether every channel subscription is active.
func (r *BusRelay) Listening() bool {
	for _, l := range r.listening {
		if !l.Load() {
			return false
		}
	}
	return true
}

// Healthy implements Relay.
func (r *BusRelay) Healthy() bool {
	return r.bus.Healthy() && r.breaker.State() != gobreaker.StateOpen && r.Listening()
}

// Mode implements Relay.
func (r *BusRelay) Mode() string { return r.bus.Name() }

// BreakerState exposes the circuit breaker state.
func (r *BusRelay) BreakerState() gobreaker.State { return r.breaker.State() }

// Close closes the bus.
func (r *BusRelay) Close() error {
	if err := r.bus.Close(); err != nil && !errors.Is(err, ErrBusClosed) {
		return err
	}
	return nil
}

// String implements fmt.Stringer for supervisor logs.
func (r *BusRelay) String() string { return "relay-" + r.bus.Name() }
