// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package presence turns session and room membership changes into JOIN and
// LEAVE events broadcast on the presence channel.
//
// Global events (no room) reach subscribers of topic/presence on every
// process; room-scoped events reach subscribers of the room topic.
package presence

import (
	"context"
	"time"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
	"github.com/tomtom215/relaychat/internal/relay"
	"github.com/tomtom215/relaychat/internal/session"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher implements session.Listener.
type Publisher struct {
	relay   relay.Relay
	timeout time.Duration
}

var _ session.Listener = (*Publisher)(nil)

// NewPublisher creates a publisher. A zero timeout uses 5 seconds.
func NewPublisher(r relay.Relay, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{relay: r, timeout: timeout}
}

// IdentityOnline publishes a global JOIN for identity's first connection.
func (p *Publisher) IdentityOnline(identity string) {
	_ = p.publish(context.Background(), models.NewJoin(identity, ""))
}

// IdentityOffline publishes a global LEAVE after identity's last connection.
func (p *Publisher) IdentityOffline(identity string) {
	_ = p.publish(context.Background(), models.NewLeave(identity, ""))
}

// RoomJoined publishes a JOIN scoped to roomID.
func (p *Publisher) RoomJoined(ctx context.Context, identity, roomID string) error {
	return p.publish(ctx, models.NewJoin(identity, roomID))
}

// RoomLeft publishes a LEAVE scoped to roomID.
func (p *Publisher) RoomLeft(ctx context.Context, identity, roomID string) error {
	return p.publish(ctx, models.NewLeave(identity, roomID))
}

func (p *Publisher) publish(ctx context.Context, event *models.ChatMessage) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.relay.Publish(ctx, models.ChannelPresence, event)
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Str("identity", event.Sender).
			Str("room_id", event.RoomID).
			Str("type", string(event.Kind)).
			Msg("failed to publish presence event")
		return err
	}
	logging.Ctx(ctx).Debug().
		Str("identity", event.Sender).
		Str("room_id", event.RoomID).
		Str("type", string(event.Kind)).
		Msg("presence event published")
	return nil
}
