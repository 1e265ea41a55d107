// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/metrics"
)

const (
	closeNormal          = websocket.CloseNormalClosure
	closeGoingAway       = websocket.CloseGoingAway
	closePolicyViolation = websocket.ClosePolicyViolation
	closeTryAgainLater   = websocket.CloseTryAgainLater
)

// State is the lifecycle state of a connection.
type State int32

const (
	StatePending State = iota
	StateAuthenticated
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// clientIDCounter gives every client a monotonically increasing ID used to
// order fan-out deterministically.
var clientIDCounter atomic.Uint64

// Conn is the view of a connection handed to destination handlers.
type Conn interface {
	// ID is the connection identifier used by the session registry.
	ID() string
	// Identity is the authenticated identity; immutable for the connection.
	Identity() string
	// JoinRoom records room membership. It reports false if already a member.
	JoinRoom(roomID string) bool
	// LeaveRoom drops room membership. It reports false if not a member.
	LeaveRoom(roomID string) bool
	// Rooms returns the joined rooms, sorted.
	Rooms() []string
}

// Client is one WebSocket connection: a read pump feeding the gateway and a
// write pump draining the send buffer.
type Client struct {
	id      uint64
	connID  string
	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	state      atomic.Int32
	opened     atomic.Bool
	registered atomic.Bool
	closeOnce  sync.Once

	mu        sync.RWMutex
	identity  string
	topics    map[string]struct{}
	rooms     map[string]struct{}
	authTimer *time.Timer
	closeCode int
	closeText string
}

func newClient(g *Gateway, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(g.baseContext())
	c := &Client{
		id:      clientIDCounter.Add(1),
		connID:  uuid.NewString(),
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, g.config.SendBuffer),
		done:    make(chan struct{}),
		limiter: newLimiter(g.config.MessageRate, g.config.MessageBurst),
		ctx:     ctx,
		cancel:  cancel,
		topics:  make(map[string]struct{}),
		rooms:   make(map[string]struct{}),
	}
	c.state.Store(int32(StatePending))
	return c
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// ID implements Conn.
func (c *Client) ID() string { return c.connID }

// Identity implements Conn.
func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsClosed reports whether the connection reached CLOSED.
func (c *Client) IsClosed() bool {
	return c.State() == StateClosed
}

// transition moves from one state to another and reports success.
// PENDING->AUTHENTICATED, AUTHENTICATED->OPEN and the auth timeout's
// PENDING->CLOSED go through here; shutdown reaches CLOSED from any state.
func (c *Client) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// bindIdentity performs PENDING -> AUTHENTICATED and fixes the identity.
func (c *Client) bindIdentity(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.transition(StatePending, StateAuthenticated) {
		return false
	}
	c.identity = identity
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
	return true
}

// armAuthTimer closes the connection if it is still PENDING after d.
func (c *Client) armAuthTimer(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authTimer = time.AfterFunc(d, func() { c.expirePending(d) })
}

// expirePending closes a PENDING connection. The PENDING->CLOSED swap races
// bindIdentity's PENDING->AUTHENTICATED swap; exactly one of them wins.
func (c *Client) expirePending(d time.Duration) bool {
	if !c.transition(StatePending, StateClosed) {
		return false
	}
	metrics.RecordHandshakeRejected("auth_timeout")
	logging.Info().Str("connection_id", c.connID).Dur("timeout", d).Msg("closing unauthenticated connection")
	c.sendError("", ErrNotConnected)
	c.shutdown(closePolicyViolation, "authentication timeout")
	return true
}

// JoinRoom implements Conn.
func (c *Client) JoinRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; ok {
		return false
	}
	c.rooms[roomID] = struct{}{}
	return true
}

// LeaveRoom implements Conn.
func (c *Client) LeaveRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; !ok {
		return false
	}
	delete(c.rooms, roomID)
	return true
}

// Rooms implements Conn.
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.rooms)
}

// Topics returns the subscribed topics, sorted.
func (c *Client) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.topics)
}

func (c *Client) trackTopic(topic string, subscribed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if subscribed {
		c.topics[topic] = struct{}{}
	} else {
		delete(c.topics, topic)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// enqueue hands an encoded frame to the write pump without blocking.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) sendFrame(command Command, destination, id string, body interface{}) {
	frame, err := newFrame(command, destination, id, body)
	if err != nil {
		logging.Error().Err(err).Str("command", string(command)).Msg("failed to encode frame")
		return
	}
	if !c.enqueue(frame) && !c.IsClosed() {
		c.closeSlow()
	}
}

func (c *Client) sendError(destination string, err error) {
	metrics.RecordFrameError(errorType(err))
	c.sendFrame(CommandError, destination, "", ErrorBody{Message: err.Error(), Destination: destination})
}

// shutdown moves the client to CLOSED once. The write pump flushes pending
// frames, sends a close frame with code and text, and closes the socket.
func (c *Client) shutdown(code int, text string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeText = text
		if c.authTimer != nil {
			c.authTimer.Stop()
			c.authTimer = nil
		}
		c.mu.Unlock()

		c.state.Store(int32(StateClosed))
		close(c.done)
		c.cancel()
	})
}

func (c *Client) closeSlow() {
	metrics.WSSlowConsumers.Inc()
	logging.Warn().
		Str("connection_id", c.connID).
		Str("identity", c.Identity()).
		Msg("send buffer full, disconnecting slow consumer")
	c.shutdown(closeTryAgainLater, "slow consumer")
}

// readPump reads frames until the socket fails or the client is closed.
func (c *Client) readPump() {
	defer c.gateway.disconnect(c)

	cfg := c.gateway.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("connection_id", c.connID).Msg("unexpected websocket close error")
			}
			return
		}
		// Any client traffic proves liveness.
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))

		c.gateway.handleFrame(c, data)
		if c.IsClosed() {
			return
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) writePump() {
	cfg := c.gateway.config
	ticker := time.NewTicker(cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort; unblocks the read pump
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.flush()
			c.mu.RLock()
			code, text := c.closeCode, c.closeText
			c.mu.RUnlock()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
			return
		}
	}
}

// flush writes whatever is still buffered so an ERROR frame preceding a
// close reaches the client.
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.gateway.config.WriteWait)); err != nil {
		logging.Debug().Err(err).Msg("failed to set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		logging.Debug().Err(err).Str("connection_id", c.connID).Msg("websocket write failed")
		return false
	}
	return true
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
