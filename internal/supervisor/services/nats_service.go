// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/relaychat/internal/logging"
)

// ErrEmbeddedServerStopped is logged when the embedded NATS server exits
// while the process keeps running.
var ErrEmbeddedServerStopped = errors.New("embedded NATS server stopped")

// EmbeddedServer is satisfied by *relay.EmbeddedServer.
type EmbeddedServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService owns the lifecycle of an already started embedded
// NATS server. It polls health and shuts the server down when the tree
// stops. A server that dies is not restarted; the relay degrades to local
// delivery instead.
type EmbeddedNATSService struct {
	server          EmbeddedServer
	checkInterval   time.Duration
	shutdownTimeout time.Duration
}

// NewEmbeddedNATSService wraps server.
func NewEmbeddedNATSService(server EmbeddedServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		checkInterval:   5 * time.Second,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		if !s.server.IsRunning() {
			logging.Error().Err(ErrEmbeddedServerStopped).Msg("embedded NATS server is down; relay will deliver locally")
			return suture.ErrDoNotRestart
		}

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("embedded NATS server shutdown incomplete")
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *EmbeddedNATSService) String() string {
	return "nats-embedded"
}
