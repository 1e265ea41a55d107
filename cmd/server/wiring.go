// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package main

import (
	"github.com/tomtom215/relaychat/internal/api"
	"github.com/tomtom215/relaychat/internal/config"
	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/relay"
	"github.com/tomtom215/relaychat/internal/store"
	"github.com/tomtom215/relaychat/internal/supervisor"
	"github.com/tomtom215/relaychat/internal/websocket"
)

// Translations from the config tree to each package's own settings. The
// config package stays a leaf; nothing under internal/ imports it.

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	}
}

func gatewayConfig(cfg *config.Config) websocket.Config {
	return websocket.Config{
		AuthTimeout:    cfg.WebSocket.AuthTimeout,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MessageRate:    cfg.WebSocket.MessageRate,
		MessageBurst:   cfg.WebSocket.MessageBurst,
		AllowedOrigins: cfg.Security.CORSOrigins,
	}
}

// relayOptions builds relay.Options. natsURL overrides cfg.NATS.URL when an
// embedded server is running.
func relayOptions(cfg *config.Config, natsURL string) relay.Options {
	rc := relay.DefaultConfig()
	rc.PublishTimeout = cfg.Relay.PublishTimeout
	rc.Breaker.FailureThreshold = cfg.Relay.BreakerFailureThreshold
	rc.Breaker.Timeout = cfg.Relay.BreakerTimeout
	rc.Breaker.Interval = cfg.Relay.BreakerInterval
	rc.Breaker.MaxRequests = cfg.Relay.BreakerMaxRequests

	nc := relay.DefaultNATSConfig()
	nc.URL = cfg.NATS.URL
	if natsURL != "" {
		nc.URL = natsURL
	}
	nc.MaxReconnects = cfg.NATS.MaxReconnects
	nc.ReconnectWait = cfg.NATS.ReconnectWait

	rd := relay.DefaultRedisConfig()
	rd.Addr = cfg.Redis.Addr
	rd.Password = cfg.Redis.Password
	rd.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rd.PoolSize = cfg.Redis.PoolSize
	}

	return relay.Options{
		Backend: relay.Backend(cfg.Relay.Backend),
		Relay:   rc,
		NATS:    nc,
		Redis:   rd,
		Logger:  logging.NewWatermillAdapter(),
	}
}

func embeddedServerConfig(cfg *config.Config) relay.EmbeddedServerConfig {
	ec := relay.DefaultEmbeddedServerConfig()
	ec.Host = cfg.NATS.Host
	ec.Port = cfg.NATS.Port
	return ec
}

func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		Path:       cfg.Storage.Path,
		InMemory:   cfg.Storage.InMemory,
		SyncWrites: cfg.Storage.SyncWrites,
	}
}

func middlewareConfig(cfg *config.Config) *api.ChiMiddlewareConfig {
	mc := api.DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mc.HandshakeLimit = cfg.Security.HandshakeRateLimit
	mc.HandshakeWindow = cfg.Security.HandshakeRateWindow
	return mc
}

func treeConfig(cfg *config.Config) supervisor.TreeConfig {
	tc := supervisor.DefaultTreeConfig()
	tc.ShutdownTimeout = cfg.Server.ShutdownTimeout
	return tc
}
