// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package main is the entry point for the Relaychat server.

Relaychat accepts WebSocket connections from chat clients, authenticates
them, and delivers room messages, private messages and presence events.
Several server processes can run side by side; a broadcast relay (NATS or
Redis pub/sub) carries every published event to every process, and each
process hands it to its locally subscribed connections.

# Application Architecture

	RootSupervisor ("relaychat")
	├── TransportSupervisor ("transport-layer")
	│   └── Embedded NATS server (optional)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket dispatcher
	│   └── Broadcast relay subscriber
	└── APISupervisor ("api-layer")
	    └── HTTP server (/ws, /api/v1, /metrics)

Initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog with JSON or console output
 3. Storage: Badger message log and identity directory
 4. Relay: embedded NATS (optional), then the configured bus
 5. Sessions: registry wired to the presence publisher
 6. Gateway: authenticator, chat destinations and connection hooks
 7. HTTP: chi router with CORS, handshake rate limit and metrics
 8. Supervisor tree: suture v4

# Relay Backends

RELAY_BACKEND selects the transport:

	nats    Core NATS subjects (default). NATS_EMBEDDED_SERVER=true runs one in process.
	redis   Redis PUBLISH/SUBSCRIBE on REDIS_ADDR.
	memory  In-process GoChannel. Single process only.
	local   No bus. Publishes go straight to the local dispatcher.

When the bus is unreachable or its circuit breaker is open, publishes are
delivered to local subscribers only and the readiness endpoint reports
degraded.

# Authentication

AUTH_MODE selects how connections prove their identity:

	username  The client asserts an identity (development).
	jwt       Bearer token signed with JWT_SECRET.
	multi     JWT first, username as fallback.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server, closes every connection, stops the relay subscriber and finally the
embedded NATS server.

# Example Usage

Single process for development:

	export AUTH_MODE=username
	export RELAY_BACKEND=local
	./relaychat

Two processes sharing Redis:

	export RELAY_BACKEND=redis
	export REDIS_ADDR=redis:6379
	export AUTH_MODE=jwt
	export JWT_SECRET=$(openssl rand -base64 32)
	HTTP_PORT=8080 ./relaychat &
	HTTP_PORT=8081 ./relaychat &
*/
package main
