// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/relaychat/internal/models"
)

// Subscription destinations clients can SUBSCRIBE to.
const (
	RoomPrefix          = "topic/room/"
	PrivatePrefix       = "topic/private/"
	PresenceDestination = "topic/presence"
)

// Subscription errors.
var (
	ErrUnknownDestination = errors.New("unknown subscription destination")
	ErrForbidden          = errors.New("not a participant of this conversation")
)

// RoomDestination returns the subscription destination of a room.
func RoomDestination(roomID string) string {
	return RoomPrefix + roomID
}

// PrivateDestination returns the subscription destination of a direct conversation.
func PrivateDestination(conversationID string) string {
	return PrivatePrefix + conversationID
}

// DestinationFor resolves the local fan-out destination of a relayed message.
// Room chat and room-scoped presence go to the room; direct chat goes to the
// sorted-pair private topic; global presence goes to PresenceDestination.
func DestinationFor(m *models.ChatMessage) (string, error) {
	switch m.RecipientKind() {
	case models.RecipientRoom:
		room, err := RoomTopic(m.RoomID)
		if err != nil {
			return "", err
		}
		return RoomDestination(room), nil

	case models.RecipientDirect:
		if m.Kind.IsPresence() {
			return "", fmt.Errorf("%s event cannot be addressed to a peer", m.Kind)
		}
		topic, err := DirectTopic(m.Sender, m.Receiver)
		if err != nil {
			return "", err
		}
		return PrivateDestination(topic), nil

	default:
		if !m.Kind.IsPresence() {
			return "", models.ErrMissingTarget
		}
		return PresenceDestination, nil
	}
}

// Authorize decides whether identity may subscribe to destination.
// Rooms and the global presence topic are open to any authenticated identity;
// a private topic only to its two participants.
func Authorize(identity, destination string) error {
	switch {
	case destination == PresenceDestination:
		return nil

	case strings.HasPrefix(destination, RoomPrefix):
		if strings.TrimPrefix(destination, RoomPrefix) == "" {
			return fmt.Errorf("%w: %s", ErrUnknownDestination, destination)
		}
		return nil

	case strings.HasPrefix(destination, PrivatePrefix):
		a, b, ok := Participants(strings.TrimPrefix(destination, PrivatePrefix))
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDestination, destination)
		}
		if identity != a && identity != b {
			return ErrForbidden
		}
		// Only the canonical ordering is a valid topic.
		if a > b {
			return fmt.Errorf("%w: %s", ErrUnknownDestination, destination)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownDestination, destination)
	}
}
