// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/relaychat/config.yaml",
	"/etc/relaychat/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		WebSocket: WebSocketConfig{
			AuthTimeout:    10 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			PingPeriod:     54 * time.Second,
			MaxMessageSize: 512 * 1024,
			SendBuffer:     256,
			MessageRate:    20,
			MessageBurst:   40,
		},
		Relay: RelayConfig{
			Backend:                 "nats",
			PublishTimeout:          2 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
			BreakerInterval:         time.Minute,
			BreakerMaxRequests:      3,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			DB:       0,
			PoolSize: 10,
		},
		Security: SecurityConfig{
			AuthMode:            "username",
			JWTIssuer:           "relaychat",
			TokenTTL:            24 * time.Hour,
			CORSOrigins:         []string{"*"},
			HandshakeRateLimit:  30,
			HandshakeRateWindow: time.Minute,
		},
		Storage: StorageConfig{
			Path: "/data/relaychat",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration from defaults, then the optional YAML
// file, then environment variables, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k, err := load()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// GetKoanfInstance returns the merged koanf tree, for debugging config layering.
func GetKoanfInstance() (*koanf.Koanf, error) {
	return load()
}

func load() (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	return k, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigFile reports the file LoadWithKoanf would read, or "".
func ConfigFile() string {
	return findConfigFile()
}

// sliceConfigPaths are parsed as comma separated lists when set from env.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_port":          "server.port",
	"http_host":          "server.host",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"http_idle_timeout":  "server.idle_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",
	"environment":        "server.environment",

	// WebSocket
	"ws_auth_timeout":     "websocket.auth_timeout",
	"ws_pong_wait":        "websocket.pong_wait",
	"ws_write_wait":       "websocket.write_wait",
	"ws_ping_period":      "websocket.ping_period",
	"ws_max_message_size": "websocket.max_message_size",
	"ws_send_buffer":      "websocket.send_buffer",
	"ws_message_rate":     "websocket.message_rate",
	"ws_message_burst":    "websocket.message_burst",

	// Relay
	"relay_backend":              "relay.backend",
	"relay_publish_timeout":      "relay.publish_timeout",
	"relay_breaker_threshold":    "relay.breaker_failure_threshold",
	"relay_breaker_timeout":      "relay.breaker_timeout",
	"relay_breaker_interval":     "relay.breaker_interval",
	"relay_breaker_max_requests": "relay.breaker_max_requests",

	// NATS
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",

	// Redis
	"redis_addr":      "redis.addr",
	"redis_password":  "redis.password",
	"redis_db":        "redis.db",
	"redis_pool_size": "redis.pool_size",

	// Security
	"auth_mode":             "security.auth_mode",
	"jwt_secret":            "security.jwt_secret",
	"jwt_issuer":            "security.jwt_issuer",
	"jwt_token_ttl":         "security.token_ttl",
	"cors_origins":          "security.cors_origins",
	"handshake_rate_limit":  "security.handshake_rate_limit",
	"handshake_rate_window": "security.handshake_rate_window",

	// Storage
	"storage_path":        "storage.path",
	"storage_in_memory":   "storage.in_memory",
	"storage_sync_writes": "storage.sync_writes",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path.
// Unmapped variables return "" and are ignored.
//
//   - HTTP_PORT -> server.port
//   - RELAY_BACKEND -> relay.backend
//   - NATS_EMBEDDED -> nats.embedded_server
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes.
// The caller synchronizes access to anything the callback replaces.
//
//	err := config.WatchConfigFile(path, func() {
//	    newCfg, err := config.LoadWithKoanf()
//	    if err != nil {
//	        logging.Warn().Err(err).Msg("config reload failed")
//	        return
//	    }
//	    logging.SetLevelString(newCfg.Logging.Level)
//	})
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
