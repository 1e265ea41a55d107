// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package relay

import (
	"context"
	"errors"
)

// Bus errors.
var (
	ErrBusClosed      = errors.New("relay bus is closed")
	ErrBusUnavailable = errors.New("relay bus is not connected")
)

// Bus is a broadcast pub/sub transport. Every subscriber of a channel in
// every process receives every payload published to it.
type Bus interface {
	// Publish sends payload to channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe streams payloads published to channel until ctx is done or
	// the bus is closed, then closes the returned channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Healthy reports whether the transport is currently connected.
	Healthy() bool

	// Name identifies the backend: nats, redis or memory.
	Name() string

	Close() error
}

// Deliverer pushes an encoded message to local subscribers of a topic.
// websocket.Dispatcher implements it.
type Deliverer interface {
	DeliverToTopic(topic string, payload []byte) int
}
