// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/relaychat/internal/auth"
	"github.com/tomtom215/relaychat/internal/conversation"
	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/metrics"
	"github.com/tomtom215/relaychat/internal/session"
)

// Config tunes connection handling.
type Config struct {
	// AuthTimeout bounds how long a connection may stay PENDING.
	AuthTimeout time.Duration
	// PongWait is the read deadline refreshed by any client traffic.
	PongWait time.Duration
	// WriteWait bounds a single socket write.
	WriteWait time.Duration
	// PingPeriod must be shorter than PongWait. Zero derives 90% of PongWait.
	PingPeriod time.Duration
	// MaxMessageSize is the largest frame accepted from a client.
	MaxMessageSize int64
	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
	// MessageRate is the sustained frames per second per connection; 0 disables.
	MessageRate float64
	// MessageBurst is the rate limiter burst.
	MessageBurst int
	// AllowedOrigins lists accepted Origin headers. Empty or "*" allows all.
	AllowedOrigins []string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		AuthTimeout:    10 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512 * 1024,
		SendBuffer:     256,
		MessageRate:    20,
		MessageBurst:   40,
	}
}

func (c Config) pingPeriod() time.Duration {
	if c.PingPeriod > 0 && c.PingPeriod < c.PongWait {
		return c.PingPeriod
	}
	return c.PongWait * 9 / 10
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = def.AuthTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	return c
}

// HandlerFunc handles a SEND frame addressed to one destination. The body is
// the raw frame body; the returned error is reported to the client in an
// ERROR frame.
type HandlerFunc func(ctx context.Context, conn Conn, body []byte) error

// Gateway upgrades HTTP requests to WebSocket connections, authenticates
// them, and routes their frames to the dispatcher and destination handlers.
type Gateway struct {
	dispatcher    *Dispatcher
	registry      *session.Registry
	authenticator auth.Authenticator
	config        Config
	upgrader      websocket.Upgrader

	mu           sync.RWMutex
	routes       map[string]HandlerFunc
	onConnect    []func(Conn)
	onDisconnect []func(Conn)
	ctx          context.Context
}

// NewGateway creates a gateway. Zero config fields take DefaultConfig values.
func NewGateway(d *Dispatcher, r *session.Registry, a auth.Authenticator, cfg Config) *Gateway {
	cfg = cfg.withDefaults()
	g := &Gateway{
		dispatcher:    d,
		registry:      r,
		authenticator: a,
		config:        cfg,
		routes:        make(map[string]HandlerFunc),
		ctx:           context.Background(),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      g.checkOrigin,
	}
	return g
}

// SetBaseContext sets the parent context of every connection context.
// Canceling it cancels in-flight handler calls.
func (g *Gateway) SetBaseContext(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctx = ctx
}

func (g *Gateway) baseContext() context.Context {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ctx
}

// Handle registers h for SEND frames to destination. Registering a
// destination twice panics.
func (g *Gateway) Handle(destination string, h HandlerFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.routes[destination]; exists {
		panic(fmt.Sprintf("websocket: duplicate handler for destination %q", destination))
	}
	g.routes[destination] = h
}

// OnConnect registers fn to run after a connection reaches OPEN and its
// session is registered.
func (g *Gateway) OnConnect(fn func(Conn)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onConnect = append(g.onConnect, fn)
}

// OnDisconnect registers fn to run when an OPEN connection closes, before
// its session is unregistered.
func (g *Gateway) OnDisconnect(fn func(Conn)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onDisconnect = append(g.onDisconnect, fn)
}

func (g *Gateway) route(destination string) (HandlerFunc, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.routes[destination]
	return h, ok
}

// checkOrigin validates the Origin header against the configured list.
// Non-browser clients send no Origin and are accepted.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	allowed := g.config.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	metrics.RecordHandshakeRejected("origin")
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected: origin not allowed")
	return false
}

// ServeHTTP performs the handshake. Credentials presented with the upgrade
// request are checked before upgrading; a connection without credentials
// starts PENDING and must send CONNECT within AuthTimeout.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	creds := auth.CredentialsFromRequest(r)

	var identity string
	if !creds.Empty() {
		id, err := g.authenticator.Authenticate(r.Context(), creds)
		if err != nil {
			metrics.RecordHandshakeRejected("invalid_credentials")
			logging.Info().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket handshake rejected")
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		identity = id
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		metrics.RecordHandshakeRejected("upgrade_failed")
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(g, conn)
	g.dispatcher.Attach(c)

	if identity != "" {
		c.bindIdentity(identity)
		g.open(c)
	} else {
		c.armAuthTimer(g.config.AuthTimeout)
	}

	c.Start()
}

// open moves an AUTHENTICATED client to OPEN, registers its session and
// acknowledges with CONNECTED.
func (g *Gateway) open(c *Client) {
	if !c.transition(StateAuthenticated, StateOpen) {
		return
	}
	identity := c.Identity()
	c.opened.Store(true)

	// A registry failure leaves the session unknown to this process but
	// keeps the connection alive.
	if err := g.registry.Register(c.ID(), identity); err != nil {
		logging.Error().Err(err).Str("connection_id", c.ID()).Str("identity", identity).Msg("session registration failed")
	} else {
		c.registered.Store(true)
	}

	c.sendFrame(CommandConnected, "", "", ConnectedBody{Identity: identity, ConnectionID: c.ID()})
	logging.Info().Str("connection_id", c.ID()).Str("identity", identity).Msg("websocket session opened")

	g.mu.RLock()
	hooks := append([]func(Conn){}, g.onConnect...)
	g.mu.RUnlock()
	for _, fn := range hooks {
		runHook("connect", fn, c)
	}
}

// disconnect tears a client down. Safe to call more than once.
func (g *Gateway) disconnect(c *Client) {
	c.shutdown(closeNormal, "")
	g.dispatcher.Detach(c)

	if !c.opened.CompareAndSwap(true, false) {
		return
	}

	g.mu.RLock()
	hooks := append([]func(Conn){}, g.onDisconnect...)
	g.mu.RUnlock()
	for _, fn := range hooks {
		runHook("disconnect", fn, c)
	}

	if c.registered.CompareAndSwap(true, false) {
		g.registry.Unregister(c.ID())
	}
	logging.Info().Str("connection_id", c.ID()).Str("identity", c.Identity()).Msg("websocket session closed")
}

func runHook(name string, fn func(Conn), c *Client) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Interface("panic", r).
				Str("hook", name).
				Str("connection_id", c.ID()).
				Msg("recovered from panic in connection hook")
		}
	}()
	fn(c)
}

// handleFrame processes one inbound frame according to the connection state.
func (g *Gateway) handleFrame(c *Client, data []byte) {
	frame, err := decodeFrame(data)
	if err != nil {
		c.sendError("", err)
		return
	}
	metrics.RecordFrameReceived(string(frame.Command))

	if !c.limiter.Allow() {
		c.sendError(frame.Destination, ErrRateLimited)
		return
	}

	switch frame.Command {
	case CommandPing:
		c.sendFrame(CommandPong, "", frame.ID, nil)

	case CommandConnect:
		g.handleConnect(c, frame)

	case CommandSubscribe, CommandUnsubscribe, CommandSend:
		if c.State() != StateOpen {
			c.sendError(frame.Destination, ErrNotConnected)
			c.shutdown(closePolicyViolation, "not authenticated")
			return
		}
		switch frame.Command {
		case CommandSubscribe:
			g.handleSubscribe(c, frame)
		case CommandUnsubscribe:
			g.dispatcher.Unsubscribe(c, frame.Destination)
			g.receipt(c, frame)
		default:
			g.handleSend(c, frame)
		}

	default:
		c.sendError(frame.Destination, ErrUnknownCommand)
	}
}

func (g *Gateway) handleConnect(c *Client, frame *Frame) {
	if c.State() != StatePending {
		c.sendError("", ErrAlreadyConnected)
		return
	}

	var creds auth.Credentials
	if len(frame.Body) > 0 {
		if err := json.Unmarshal(frame.Body, &creds); err != nil {
			c.sendError("", ErrMalformedFrame)
			return
		}
	}

	identity, err := g.authenticator.Authenticate(c.ctx, creds)
	if err != nil {
		metrics.RecordHandshakeRejected("connect_rejected")
		logging.Info().Err(err).Str("connection_id", c.ID()).Msg("CONNECT rejected")
		c.sendError("", auth.ErrInvalidCredentials)
		c.shutdown(closePolicyViolation, "authentication failed")
		return
	}

	if !c.bindIdentity(identity) {
		return
	}
	g.open(c)
}

func (g *Gateway) handleSubscribe(c *Client, frame *Frame) {
	if err := conversation.Authorize(c.Identity(), frame.Destination); err != nil {
		logging.Debug().
			Err(err).
			Str("connection_id", c.ID()).
			Str("destination", frame.Destination).
			Msg("subscription refused")
		c.sendError(frame.Destination, err)
		return
	}
	g.dispatcher.Subscribe(c, frame.Destination)
	g.receipt(c, frame)
}

func (g *Gateway) receipt(c *Client, frame *Frame) {
	if frame.ID != "" {
		c.sendFrame(CommandReceipt, frame.Destination, frame.ID, nil)
	}
}

func (g *Gateway) handleSend(c *Client, frame *Frame) {
	h, ok := g.route(frame.Destination)
	if !ok {
		c.sendError(frame.Destination, ErrUnknownDestination)
		return
	}

	ctx := logging.ContextWithConnection(c.ctx, c.ID(), c.Identity())
	if err := invoke(ctx, h, c, frame.Body); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("destination", frame.Destination).Msg("handler rejected frame")
		c.sendError(frame.Destination, err)
		return
	}
	g.receipt(c, frame)
}

func invoke(ctx context.Context, h HandlerFunc, c *Client, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Interface("panic", r).Msg("recovered from panic in destination handler")
			err = errors.New("internal error")
		}
	}()
	return h(ctx, c, body)
}

// errorType labels frame errors for metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return "malformed"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrUnknownDestination):
		return "unknown_destination"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrAlreadyConnected):
		return "already_connected"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, conversation.ErrForbidden):
		return "forbidden"
	case errors.Is(err, conversation.ErrUnknownDestination):
		return "unknown_destination"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "auth"
	default:
		return "handler"
	}
}
