// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relaychat/internal/metrics"
	"github.com/tomtom215/relaychat/internal/models"
)

// ChiMiddlewareConfig configures CORS and handshake throttling.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// HandshakeLimit WebSocket upgrades per HandshakeWindow per client IP.
	// Zero disables the limit.
	HandshakeLimit  int
	HandshakeWindow time.Duration
}

// DefaultChiMiddlewareConfig returns the defaults. CORS origins start empty
// so wildcard access is always an explicit choice.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,
		HandshakeLimit:     30,
		HandshakeWindow:    time.Minute,
	}
}

// ChiMiddleware builds chi-compatible middleware from a config.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware builds the middleware set. nil uses the defaults.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	return &ChiMiddleware{
		config: config,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: config.CORSAllowedOrigins,
			AllowedMethods: config.CORSAllowedMethods,
			AllowedHeaders: config.CORSAllowedHeaders,
			ExposedHeaders: []string{"X-Request-ID", "ETag"},
			MaxAge:         config.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitHandshake throttles WebSocket upgrades per client IP.
func (m *ChiMiddleware) RateLimitHandshake() func(http.Handler) http.Handler {
	if m.config.HandshakeLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		m.config.HandshakeLimit,
		m.config.HandshakeWindow,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(handshakeLimited),
	)
}

func handshakeLimited(w http.ResponseWriter, _ *http.Request) {
	metrics.RecordHandshakeRejected("rate_limited")

	body, _ := json.Marshal(&models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    ErrCodeTooManyRequests,
			Message: "too many connection attempts, retry later",
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write(body)
}
