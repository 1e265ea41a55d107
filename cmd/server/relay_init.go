// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/relaychat/internal/config"
	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/relay"
	"github.com/tomtom215/relaychat/internal/supervisor"
	"github.com/tomtom215/relaychat/internal/supervisor/services"
)

// RelayComponents holds the relay and the optional embedded NATS server.
type RelayComponents struct {
	server *relay.EmbeddedServer
	relay  relay.Relay
	closer func() error
}

// InitRelay starts the embedded NATS server when configured and builds the
// relay over local. The embedded server only runs with the nats backend.
func InitRelay(cfg *config.Config, local relay.Deliverer) (*RelayComponents, error) {
	components := &RelayComponents{}

	var natsURL string
	if relay.Backend(cfg.Relay.Backend) == relay.BackendNATS && cfg.NATS.EmbeddedServer {
		srv, err := relay.NewEmbeddedServer(embeddedServerConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		components.server = srv
		natsURL = srv.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	rel, closer, err := relay.New(relayOptions(cfg, natsURL), local)
	if err != nil {
		if components.server != nil {
			_ = components.server.Shutdown(context.Background())
		}
		return nil, fmt.Errorf("create relay: %w", err)
	}
	components.relay = rel
	components.closer = closer

	logging.Info().
		Str("backend", rel.Mode()).
		Bool("healthy", rel.Healthy()).
		Msg("Relay initialized")
	return components, nil
}

// Relay returns the relay.
func (c *RelayComponents) Relay() relay.Relay {
	return c.relay
}

// AddToSupervisor registers the embedded server on the transport layer and
// the relay subscriber on the messaging layer.
func (c *RelayComponents) AddToSupervisor(tree *supervisor.SupervisorTree, shutdownTimeout time.Duration) {
	if c == nil {
		return
	}
	if c.server != nil {
		tree.AddTransportService(services.NewEmbeddedNATSService(c.server, shutdownTimeout))
		logging.Info().Msg("Embedded NATS server added to supervisor tree (transport layer)")
	}
	tree.AddMessagingService(services.NewRelayService(c.relay))
	logging.Info().Str("backend", c.relay.Mode()).Msg("Relay added to supervisor tree (messaging layer)")
}

// Close releases the bus connection. The embedded server is stopped by its
// supervisor service.
func (c *RelayComponents) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}
