// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package config

import (
	"fmt"
	"time"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Relay     RelayConfig     `koanf:"relay"`
	NATS      NATSConfig      `koanf:"nats"`
	Redis     RedisConfig     `koanf:"redis"`
	Security  SecurityConfig  `koanf:"security"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig tunes persistent connections.
type WebSocketConfig struct {
	AuthTimeout    time.Duration `koanf:"auth_timeout"`
	PongWait       time.Duration `koanf:"pong_wait"`
	WriteWait      time.Duration `koanf:"write_wait"`
	PingPeriod     time.Duration `koanf:"ping_period"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBuffer     int           `koanf:"send_buffer"`
	MessageRate    float64       `koanf:"message_rate"`
	MessageBurst   int           `koanf:"message_burst"`
}

// RelayConfig selects and tunes the cross-process relay.
type RelayConfig struct {
	Backend                 string        `koanf:"backend"` // nats, redis, memory, local
	PublishTimeout          time.Duration `koanf:"publish_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
}

// NATSConfig points the relay at NATS. With EmbeddedServer set the process
// runs its own server on Host:Port and connects to it.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// RedisConfig points the relay at Redis.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	PoolSize int    `koanf:"pool_size"`
}

// SecurityConfig holds authentication and HTTP hardening settings.
type SecurityConfig struct {
	AuthMode            string        `koanf:"auth_mode"` // jwt, username, multi
	JWTSecret           string        `koanf:"jwt_secret"`
	JWTIssuer           string        `koanf:"jwt_issuer"`
	TokenTTL            time.Duration `koanf:"token_ttl"`
	CORSOrigins         []string      `koanf:"cors_origins"`
	HandshakeRateLimit  int           `koanf:"handshake_rate_limit"`
	HandshakeRateWindow time.Duration `koanf:"handshake_rate_window"`
}

// StorageConfig locates the Badger database.
type StorageConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
