// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package config

import (
	"fmt"
	"strings"
)

var (
	validEnvironments = map[string]bool{"development": true, "staging": true, "production": true}
	validBackends     = map[string]bool{"nats": true, "redis": true, "memory": true, "local": true}
	validAuthModes    = map[string]bool{"jwt": true, "username": true, "multi": true}
	validLogLevels    = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats   = map[string]bool{"json": true, "console": true}
)

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWebSocket(); err != nil {
		return err
	}
	if err := c.validateRelay(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateLogging()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || strings.EqualFold(c.Server.Environment, "development")
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !validEnvironments[strings.ToLower(c.Server.Environment)] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if ws.AuthTimeout <= 0 || ws.PongWait <= 0 || ws.WriteWait <= 0 || ws.PingPeriod <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if ws.PingPeriod >= ws.PongWait {
		return fmt.Errorf("WS_PING_PERIOD (%s) must be shorter than WS_PONG_WAIT (%s)", ws.PingPeriod, ws.PongWait)
	}
	if ws.MaxMessageSize <= 0 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be positive")
	}
	if ws.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if ws.MessageRate < 0 || ws.MessageBurst < 0 {
		return fmt.Errorf("WS_MESSAGE_RATE and WS_MESSAGE_BURST must not be negative")
	}
	return nil
}

func (c *Config) validateRelay() error {
	if !validBackends[c.Relay.Backend] {
		return fmt.Errorf("RELAY_BACKEND must be one of: nats, redis, memory, local")
	}
	if c.Relay.PublishTimeout <= 0 {
		return fmt.Errorf("RELAY_PUBLISH_TIMEOUT must be positive")
	}
	if c.Relay.BreakerFailureThreshold == 0 {
		return fmt.Errorf("RELAY_BREAKER_THRESHOLD must be at least 1")
	}

	switch c.Relay.Backend {
	case "nats":
		return c.validateNATS()
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when RELAY_BACKEND=redis")
		}
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.EmbeddedServer {
		if c.NATS.Port < 1 || c.NATS.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535, got %d", c.NATS.Port)
		}
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when RELAY_BACKEND=nats and NATS_EMBEDDED=false")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("AUTH_MODE must be one of: jwt, username, multi")
	}
	if c.Security.AuthMode == "jwt" || c.Security.AuthMode == "multi" {
		if err := c.validateJWTSecret(); err != nil {
			return err
		}
		if c.Security.TokenTTL <= 0 {
			return fmt.Errorf("JWT_TOKEN_TTL must be positive")
		}
	}
	if c.IsProduction() && c.Security.AuthMode != "jwt" {
		return fmt.Errorf("AUTH_MODE=%s accepts unauthenticated usernames and is not allowed in production", c.Security.AuthMode)
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	if c.Security.HandshakeRateLimit < 0 {
		return fmt.Errorf("HANDSHAKE_RATE_LIMIT must not be negative")
	}
	if c.Security.HandshakeRateLimit > 0 && c.Security.HandshakeRateWindow <= 0 {
		return fmt.Errorf("HANDSHAKE_RATE_WINDOW must be positive when HANDSHAKE_RATE_LIMIT is set")
	}
	return nil
}

func (c *Config) validateJWTSecret() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

func (c *Config) validateCORS() error {
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* is not allowed in production; list the allowed origins")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard CORS policy outside production.
func (c *Config) ShouldWarnAboutCORS() bool {
	return !c.IsProduction() && c.hasWildcardCORS()
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("STORAGE_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns catch secrets copied from example files.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
