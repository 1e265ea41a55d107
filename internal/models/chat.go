// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// MessageKind is the closed set of message types.
type MessageKind string

const (
	KindChat  MessageKind = "CHAT"
	KindJoin  MessageKind = "JOIN"
	KindLeave MessageKind = "LEAVE"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindChat, KindJoin, KindLeave:
		return true
	default:
		return false
	}
}

// IsPresence reports whether k is a JOIN or LEAVE event.
func (k MessageKind) IsPresence() bool {
	return k == KindJoin || k == KindLeave
}

// RecipientKind tells whether a message targets a peer or a room.
type RecipientKind string

const (
	RecipientDirect RecipientKind = "DIRECT"
	RecipientRoom   RecipientKind = "ROOM"
	// RecipientGlobal is used for presence events that carry no room.
	RecipientGlobal RecipientKind = "GLOBAL"
)

// Errors returned by Validate and DecodeChatMessage.
var (
	ErrEmptySender     = errors.New("message sender is required")
	ErrUnknownKind     = errors.New("message type must be CHAT, JOIN or LEAVE")
	ErrEmptyContent    = errors.New("message content is required")
	ErrMissingTarget   = errors.New("chat message needs a receiver or a roomId")
	ErrAmbiguousTarget = errors.New("message cannot have both receiver and roomId")
	ErrSelfDirected    = errors.New("direct message receiver must differ from sender")
	ErrPresenceTarget  = errors.New("presence event cannot target a receiver")
)

// ChatMessage is the transport value for chat and presence traffic.
// Exactly one of Receiver and RoomID is set for CHAT messages.
type ChatMessage struct {
	Sender   string
	Receiver string
	RoomID   string
	Content  string
	Kind     MessageKind
	SentAt   time.Time
}

// wireMessage is the JSON shape; empty targets are encoded as null.
type wireMessage struct {
	Sender   string      `json:"sender"`
	Receiver *string     `json:"receiver"`
	RoomID   *string     `json:"roomId"`
	Content  string      `json:"content,omitempty"`
	Type     MessageKind `json:"type"`
	SentAt   time.Time   `json:"sentAt"`
}

// NewRoomMessage builds a CHAT message addressed to a room.
func NewRoomMessage(sender, roomID, content string) *ChatMessage {
	return &ChatMessage{Sender: sender, RoomID: roomID, Content: content, Kind: KindChat}
}

// NewDirectMessage builds a CHAT message addressed to a single peer.
func NewDirectMessage(sender, receiver, content string) *ChatMessage {
	return &ChatMessage{Sender: sender, Receiver: receiver, Content: content, Kind: KindChat}
}

// NewJoin builds a JOIN event. An empty roomID means the identity came online.
func NewJoin(identity, roomID string) *ChatMessage {
	return &ChatMessage{Sender: identity, RoomID: roomID, Kind: KindJoin}
}

// NewLeave builds a LEAVE event. An empty roomID means the identity went offline.
func NewLeave(identity, roomID string) *ChatMessage {
	return &ChatMessage{Sender: identity, RoomID: roomID, Kind: KindLeave}
}

// RecipientKind derives the addressing mode from the populated target field.
func (m *ChatMessage) RecipientKind() RecipientKind {
	switch {
	case m.Receiver != "":
		return RecipientDirect
	case m.RoomID != "":
		return RecipientRoom
	default:
		return RecipientGlobal
	}
}

// Validate checks the structural invariants of the message.
func (m *ChatMessage) Validate() error {
	if m.Sender == "" {
		return ErrEmptySender
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	if m.Receiver != "" && m.RoomID != "" {
		return ErrAmbiguousTarget
	}

	if m.Kind.IsPresence() {
		if m.Receiver != "" {
			return ErrPresenceTarget
		}
		return nil
	}

	if m.Content == "" {
		return ErrEmptyContent
	}
	if m.Receiver == "" && m.RoomID == "" {
		return ErrMissingTarget
	}
	if m.Receiver != "" && m.Receiver == m.Sender {
		return ErrSelfDirected
	}
	return nil
}

// Stamp sets SentAt to now when it has not been set yet.
func (m *ChatMessage) Stamp(now time.Time) {
	if m.SentAt.IsZero() {
		m.SentAt = now.UTC()
	}
}

// MarshalJSON encodes the message in its wire format.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Sender:  m.Sender,
		Content: m.Content,
		Type:    m.Kind,
		SentAt:  m.SentAt,
	}
	if m.Receiver != "" {
		receiver := m.Receiver
		w.Receiver = &receiver
	}
	if m.RoomID != "" {
		roomID := m.RoomID
		w.RoomID = &roomID
	}
	// JOIN and LEAVE never carry content on the wire.
	if m.Kind.IsPresence() {
		w.Content = ""
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire format. It does not validate.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = ChatMessage{
		Sender:  w.Sender,
		Content: w.Content,
		Kind:    w.Type,
		SentAt:  w.SentAt,
	}
	if w.Receiver != nil {
		m.Receiver = *w.Receiver
	}
	if w.RoomID != nil {
		m.RoomID = *w.RoomID
	}
	if m.Kind.IsPresence() {
		m.Content = ""
	}
	return nil
}

// Encode serializes the message for the relay bus.
func (m *ChatMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode chat message: %w", err)
	}
	return data, nil
}

// DecodeChatMessage parses and validates a relay payload.
func DecodeChatMessage(data []byte) (*ChatMessage, error) {
	var m ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode chat message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat message: %w", err)
	}
	return &m, nil
}
