// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	connectionIDKey  contextKey = "connection_id"
	identityKey      contextKey = "identity"
)

// GenerateCorrelationID returns a short random ID for log correlation.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID attaches a correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithConnection attaches the connection ID and bound identity so
// every log line emitted while handling a frame carries them.
func ContextWithConnection(ctx context.Context, connectionID, identity string) context.Context {
	ctx = context.WithValue(ctx, connectionIDKey, connectionID)
	if identity != "" {
		ctx = context.WithValue(ctx, identityKey, identity)
	}
	return ctx
}

// Ctx returns the global logger enriched with the IDs stored in ctx.
//
//	logging.Ctx(ctx).Info().Msg("subscribed")
//	// {"level":"info","connection_id":"...","identity":"alice","message":"subscribed"}
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Logger().With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	if id, ok := ctx.Value(connectionIDKey).(string); ok && id != "" {
		lc = lc.Str("connection_id", id)
	}
	if identity, ok := ctx.Value(identityKey).(string); ok && identity != "" {
		lc = lc.Str("identity", identity)
	}
	l := lc.Logger()
	return &l
}

// WithComponent returns a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
