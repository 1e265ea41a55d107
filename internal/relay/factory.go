// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package relay

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Backend selects the relay transport.
type Backend string

const (
	BackendNATS   Backend = "nats"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
	BackendLocal  Backend = "local"
)

// Options selects and configures a relay.
type Options struct {
	Backend Backend
	Relay   Config
	NATS    NATSConfig
	Redis   RedisConfig

	// GoChannel is shared by memory relays in the same process. Nil gives
	// each memory relay its own.
	GoChannel *gochannel.GoChannel

	Logger watermill.LoggerAdapter
}

// New builds the relay for opts.Backend. The returned closer releases the
// bus and is never nil.
func New(opts Options, local Deliverer) (Relay, func() error, error) {
	noop := func() error { return nil }

	var bus Bus
	switch opts.Backend {
	case BackendLocal:
		return NewLocalRelay(local), noop, nil
	case BackendMemory:
		bus = NewMemoryBus(opts.GoChannel)
	case BackendNATS:
		natsBus, err := NewNATSBus(opts.NATS, opts.Logger)
		if err != nil {
			return nil, noop, err
		}
		bus = natsBus
	case BackendRedis:
		bus = NewRedisBus(opts.Redis)
	default:
		return nil, noop, fmt.Errorf("unknown relay backend %q", opts.Backend)
	}

	r := NewBusRelay(bus, local, opts.Relay)
	return r, r.Close, nil
}
