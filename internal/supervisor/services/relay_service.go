// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/relaychat/internal/logging"
)

// RelayServer is satisfied by relay.Relay.
type RelayServer interface {
	Serve(ctx context.Context) error
	Mode() string
}

// RelayService keeps the relay subscriber running. When a subscription is
// lost Serve returns an error and suture restarts it with backoff; until
// then publishes fall back to local delivery.
type RelayService struct {
	relay RelayServer
}

// NewRelayService wraps r.
func NewRelayService(r RelayServer) *RelayService {
	return &RelayService{relay: r}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	err := s.relay.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		logging.Warn().Err(err).Str("mode", s.relay.Mode()).Msg("relay subscriber stopped, will restart")
		return fmt.Errorf("relay %s: %w", s.relay.Mode(), err)
	}
	return err
}

func (s *RelayService) String() string {
	return "relay-" + s.relay.Mode()
}
