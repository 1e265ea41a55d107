// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package chat implements the application destinations clients SEND to:
// room messages, direct messages, and room membership.
//
// Every handler forces the sender to the connection's identity, persists
// chat messages before relaying them, and reports collaborator failures to
// the client as request errors.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
	"github.com/tomtom215/relaychat/internal/relay"
	"github.com/tomtom215/relaychat/internal/validation"
	"github.com/tomtom215/relaychat/internal/websocket"
)

// Application destinations.
const (
	DestinationSendMessage = "app/chat.sendMessage"
	DestinationPrivate     = "app/chat.private"
	DestinationAddUser     = "app/chat.addUser"
	DestinationRemoveUser  = "app/chat.removeUser"
)

// Request errors.
var (
	ErrSelfMessage      = errors.New("cannot send a direct message to yourself")
	ErrUnknownRecipient = errors.New("recipient does not exist")
	ErrInvalidBody      = errors.New("request body is not valid JSON")
	ErrStoreUnavailable = errors.New("message could not be stored")
)

// MessageStore persists chat messages.
type MessageStore interface {
	Save(ctx context.Context, msg *models.ChatMessage) (string, error)
}

// Directory answers whether an identity can receive direct messages.
type Directory interface {
	Exists(ctx context.Context, identity string) (bool, error)
	Remember(ctx context.Context, identity string) error
}

// RoomPresence announces room membership changes.
type RoomPresence interface {
	RoomJoined(ctx context.Context, identity, roomID string) error
	RoomLeft(ctx context.Context, identity, roomID string) error
}

// SendMessageRequest is the body of app/chat.sendMessage.
type SendMessageRequest struct {
	RoomID  string `json:"roomId" validate:"required,roomid"`
	Content string `json:"content" validate:"required,max=4096"`
}

// PrivateMessageRequest is the body of app/chat.private.
type PrivateMessageRequest struct {
	Receiver string `json:"receiver" validate:"required,identity"`
	Content  string `json:"content" validate:"required,max=4096"`
}

// RoomRequest is the body of app/chat.addUser and app/chat.removeUser.
type RoomRequest struct {
	RoomID string `json:"roomId" validate:"required,roomid"`
}

// Service wires the chat destinations to the relay.
type Service struct {
	relay     relay.Relay
	store     MessageStore
	directory Directory
	presence  RoomPresence
	timeout   time.Duration
	now       func() time.Time

	// members counts joined connections per identity and room. JOIN goes out
	// on the first connection, LEAVE after the last one.
	mu      sync.Mutex
	members map[membership]int
}

type membership struct {
	identity string
	roomID   string
}

// NewService creates the chat service. timeout bounds the collaborator
// calls made from connection hooks.
func NewService(r relay.Relay, store MessageStore, directory Directory, presence RoomPresence, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		relay:     r,
		store:     store,
		directory: directory,
		presence:  presence,
		timeout:   timeout,
		now:       time.Now,
		members:   make(map[membership]int),
	}
}

// RegisterRoutes installs the chat destinations and connection hooks.
func (s *Service) RegisterRoutes(g *websocket.Gateway) {
	g.Handle(DestinationSendMessage, s.SendMessage)
	g.Handle(DestinationPrivate, s.SendPrivate)
	g.Handle(DestinationAddUser, s.AddUser)
	g.Handle(DestinationRemoveUser, s.RemoveUser)
	g.OnConnect(s.HandleConnect)
	g.OnDisconnect(s.HandleDisconnect)
}

func decode(body []byte, dst interface{}) error {
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return ErrInvalidBody
	}
	return validation.ValidateStruct(dst)
}

// SendMessage handles a room message.
func (s *Service) SendMessage(ctx context.Context, conn websocket.Conn, body []byte) error {
	var req SendMessageRequest
	if err := decode(body, &req); err != nil {
		return err
	}

	msg := models.NewRoomMessage(conn.Identity(), req.RoomID, req.Content)
	return s.storeAndPublish(ctx, models.ChannelRoom, msg)
}

// SendPrivate handles a direct message.
func (s *Service) SendPrivate(ctx context.Context, conn websocket.Conn, body []byte) error {
	var req PrivateMessageRequest
	if err := decode(body, &req); err != nil {
		return err
	}
	sender := conn.Identity()
	if req.Receiver == sender {
		return ErrSelfMessage
	}

	exists, err := s.directory.Exists(ctx, req.Receiver)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("receiver", req.Receiver).Msg("recipient lookup failed")
		return fmt.Errorf("recipient lookup failed: %w", err)
	}
	if !exists {
		return ErrUnknownRecipient
	}

	msg := models.NewDirectMessage(sender, req.Receiver, req.Content)
	return s.storeAndPublish(ctx, models.ChannelPrivate, msg)
}

func (s *Service) storeAndPublish(ctx context.Context, channel models.Channel, msg *models.ChatMessage) error {
	msg.Stamp(s.now())
	if err := msg.Validate(); err != nil {
		return err
	}

	id, err := s.store.Save(ctx, msg)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("channel", channel.String()).Msg("failed to store message")
		return ErrStoreUnavailable
	}

	if err := s.relay.Publish(ctx, channel, msg); err != nil {
		return err
	}
	logging.Ctx(ctx).Debug().
		Str("message_id", id).
		Str("channel", channel.String()).
		Msg("message relayed")
	return nil
}

// AddUser joins the connection to a room. JOIN is announced only when it is
// the identity's first connection in the room.
func (s *Service) AddUser(ctx context.Context, conn websocket.Conn, body []byte) error {
	var req RoomRequest
	if err := decode(body, &req); err != nil {
		return err
	}
	if !conn.JoinRoom(req.RoomID) {
		return nil
	}

	key := membership{identity: conn.Identity(), roomID: req.RoomID}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members[key]++
	if s.members[key] > 1 {
		return nil
	}
	if err := s.presence.RoomJoined(ctx, key.identity, key.roomID); err != nil {
		s.release(key)
		conn.LeaveRoom(req.RoomID)
		return err
	}
	return nil
}

// RemoveUser drops room membership. LEAVE is announced once the identity has
// no connection left in the room.
func (s *Service) RemoveUser(ctx context.Context, conn websocket.Conn, body []byte) error {
	var req RoomRequest
	if err := decode(body, &req); err != nil {
		return err
	}
	if !conn.LeaveRoom(req.RoomID) {
		return nil
	}
	return s.leave(ctx, conn.Identity(), req.RoomID)
}

// leave releases one connection's membership and announces LEAVE when it was
// the last. Caller must have already removed the room from the connection.
func (s *Service) leave(ctx context.Context, identity, roomID string) error {
	key := membership{identity: identity, roomID: roomID}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.release(key) > 0 {
		return nil
	}
	return s.presence.RoomLeft(ctx, identity, roomID)
}

// release decrements a membership count and returns what is left. s.mu must
// be held.
func (s *Service) release(key membership) int {
	n := s.members[key] - 1
	if n <= 0 {
		delete(s.members, key)
		return 0
	}
	s.members[key] = n
	return n
}

// HandleConnect records the identity as a direct-message target.
func (s *Service) HandleConnect(conn websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.directory.Remember(ctx, conn.Identity()); err != nil {
		logging.Error().Err(err).Str("identity", conn.Identity()).Msg("failed to remember identity")
	}
}

// HandleDisconnect releases every room the connection joined, announcing
// LEAVE where it was the identity's last connection.
func (s *Service) HandleDisconnect(conn websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	identity := conn.Identity()
	for _, roomID := range conn.Rooms() {
		conn.LeaveRoom(roomID)
		if err := s.leave(ctx, identity, roomID); err != nil {
			logging.Warn().Err(err).Str("identity", identity).Str("room_id", roomID).Msg("failed to announce room leave")
		}
	}
}
