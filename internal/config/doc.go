// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package config loads and validates the server configuration.

Configuration is layered with Koanf v2; later layers win:
 1. Defaults from defaultConfig
 2. An optional YAML file (CONFIG_PATH, or config.yaml in the working directory)
 3. Environment variables listed in envMappings

# Sections

  - server: HTTP listener, timeouts, environment (development, staging, production)
  - websocket: authentication timeout, heartbeat, frame size, per-connection buffer and rate
  - relay: backend (nats, redis, memory, local), publish timeout, circuit breaker
  - nats: server URL or embedded server address
  - redis: address and credentials
  - security: auth mode (jwt, username, multi), JWT settings, CORS, handshake rate limit
  - storage: Badger data directory
  - logging: level, format, caller

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, ENVIRONMENT
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT, SHUTDOWN_TIMEOUT

WebSocket:
  - WS_AUTH_TIMEOUT (default 10s), WS_PONG_WAIT (60s), WS_WRITE_WAIT (10s), WS_PING_PERIOD (54s)
  - WS_MAX_MESSAGE_SIZE (512KB), WS_SEND_BUFFER (256), WS_MESSAGE_RATE (20/s), WS_MESSAGE_BURST (40)

Relay:
  - RELAY_BACKEND (default nats), RELAY_PUBLISH_TIMEOUT (2s)
  - RELAY_BREAKER_THRESHOLD (5), RELAY_BREAKER_TIMEOUT (30s)
  - NATS_URL, NATS_EMBEDDED, NATS_HOST, NATS_PORT
  - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB

Security:
  - AUTH_MODE (default username), JWT_SECRET (min 32 chars), JWT_ISSUER, JWT_TOKEN_TTL
  - CORS_ORIGINS (comma separated), HANDSHAKE_RATE_LIMIT, HANDSHAKE_RATE_WINDOW

Storage and logging:
  - STORAGE_PATH, STORAGE_IN_MEMORY
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("invalid configuration")
	}
*/
package config
