// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/relaychat/internal/conversation"
	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
)

// ErrUnknownChannel is returned when publishing to a channel outside
// models.Channels.
var ErrUnknownChannel = errors.New("unknown relay channel")

// Relay broadcasts chat messages to every process and delivers the ones it
// receives to local subscribers.
type Relay interface {
	// Publish broadcasts msg on channel. A nil error means the message was
	// delivered to at least this process's subscribers.
	Publish(ctx context.Context, channel models.Channel, msg *models.ChatMessage) error

	// Serve consumes the bus until ctx is done.
	Serve(ctx context.Context) error

	// Healthy reports whether cluster-wide delivery is currently possible.
	Healthy() bool

	// Mode names the backend in use.
	Mode() string
}

// Send publishes msg on the channel its kind and target select.
func Send(ctx context.Context, r Relay, msg *models.ChatMessage) error {
	if msg == nil {
		return errors.New("relay: nil message")
	}
	return r.Publish(ctx, models.ChannelFor(msg), msg)
}

func knownChannel(channel models.Channel) bool {
	for _, c := range models.Channels() {
		if c == channel {
			return true
		}
	}
	return false
}

// prepare validates, stamps and encodes msg and resolves its local topic.
func prepare(channel models.Channel, msg *models.ChatMessage) (payload []byte, topic string, err error) {
	if msg == nil {
		return nil, "", errors.New("relay: nil message")
	}
	if !knownChannel(channel) {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	if err := msg.Validate(); err != nil {
		return nil, "", err
	}
	msg.Stamp(time.Now())

	topic, err = conversation.DestinationFor(msg)
	if err != nil {
		return nil, "", err
	}
	payload, err = msg.Encode()
	if err != nil {
		return nil, "", err
	}
	return payload, topic, nil
}

// LocalRelay delivers to this process only. It serves single-node setups
// with no bus configured.
type LocalRelay struct {
	local Deliverer
}

// NewLocalRelay creates a relay without a bus.
func NewLocalRelay(local Deliverer) *LocalRelay {
	return &LocalRelay{local: local}
}

// Publish implements Relay.
func (r *LocalRelay) Publish(_ context.Context, channel models.Channel, msg *models.ChatMessage) error {
	payload, topic, err := prepare(channel, msg)
	if err != nil {
		return err
	}
	n := r.local.DeliverToTopic(topic, payload)
	logging.Trace().Str("topic", topic).Int("delivered", n).Msg("local relay delivery")
	return nil
}

// Serve implements Relay. There is nothing to consume.
func (r *LocalRelay) Serve(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Healthy implements Relay.
func (r *LocalRelay) Healthy() bool { return true }

// Mode implements Relay.
func (r *LocalRelay) Mode() string { return "local" }

// String implements fmt.Stringer for supervisor logs.
func (r *LocalRelay) String() string { return "local-relay" }
