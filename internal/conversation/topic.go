// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package conversation maps participants and rooms to canonical topic names.
//
// A direct conversation between two identities has exactly one topic no
// matter which side sends first:
//
//	a, _ := conversation.DirectTopic("bob", "alice")   // "alice:bob"
//	b, _ := conversation.DirectTopic("alice", "bob")   // "alice:bob"
//
// Room topics are the room identifier itself. The functions in this package
// are pure and safe for concurrent use.
package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/relaychat/internal/models"
)

// Separator joins the two sorted identities of a direct conversation.
// Identities are validated upstream to never contain it.
const Separator = ":"

// ErrEmptyIdentity is returned when a participant or room identifier is empty.
var ErrEmptyIdentity = errors.New("conversation: identity must not be empty")

// DirectTopic returns min(a,b) + Separator + max(a,b) under byte-wise ordering.
func DirectTopic(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrEmptyIdentity
	}
	if b < a {
		a, b = b, a
	}
	return a + Separator + b, nil
}

// RoomTopic returns the room identifier unchanged.
func RoomTopic(roomID string) (string, error) {
	if roomID == "" {
		return "", ErrEmptyIdentity
	}
	return roomID, nil
}

// TopicFor computes the conversation topic. For ROOM addressing a is the room
// identifier and b is ignored; for DIRECT addressing a and b are the two
// participants in any order.
func TopicFor(kind models.RecipientKind, a, b string) (string, error) {
	switch kind {
	case models.RecipientRoom:
		return RoomTopic(a)
	case models.RecipientDirect:
		return DirectTopic(a, b)
	default:
		return "", fmt.Errorf("conversation: unsupported recipient kind %q", kind)
	}
}

// Participants splits a direct conversation identifier into its two identities.
func Participants(conversationID string) (string, string, bool) {
	a, b, ok := strings.Cut(conversationID, Separator)
	if !ok || a == "" || b == "" || strings.Contains(b, Separator) {
		return "", "", false
	}
	return a, b, true
}
