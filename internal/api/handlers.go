// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relaychat/internal/models"
	"github.com/tomtom215/relaychat/internal/validation"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 4 << 10

// PresenceReader is satisfied by *session.Registry.
type PresenceReader interface {
	IsOnline(identity string) bool
	ConnectionCount(identity string) int
	OnlineIdentities() []string
	Len() int
}

// RelayStatus is satisfied by relay.Relay.
type RelayStatus interface {
	Healthy() bool
	Mode() string
}

// TokenIssuer is satisfied by *auth.JWTManager.
type TokenIssuer interface {
	GenerateToken(identity string) (string, error)
}

// Handler serves the REST endpoints.
type Handler struct {
	presence  PresenceReader
	relay     RelayStatus
	tokens    TokenIssuer
	tokenTTL  time.Duration
	startTime time.Time
}

// NewHandler builds a handler. tokens may be nil, which disables the
// development token endpoint.
func NewHandler(presence PresenceReader, relay RelayStatus, tokens TokenIssuer, tokenTTL time.Duration) *Handler {
	return &Handler{
		presence:  presence,
		relay:     relay,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
		startTime: time.Now(),
	}
}

// HealthLive reports that the process is running.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}))
}

// HealthReady returns 503 while the relay cannot reach its bus. Messages
// still reach local subscribers in that state, but other instances miss
// them, so load balancers should prefer healthy peers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	healthy := h.relay.Healthy()
	status := models.HealthStatus{
		Status:    "ready",
		RelayMode: h.relay.Mode(),
		RelayOK:   healthy,
		Sessions:  h.presence.Len(),
	}

	if healthy {
		respondJSON(w, r, http.StatusOK, success(status))
		return
	}

	status.Status = "degraded"
	envelope := success(status)
	envelope.Status = "not_ready"
	respondJSON(w, r, http.StatusServiceUnavailable, envelope)
}

// PresenceOnline lists identities online on this process, sorted.
func (h *Handler) PresenceOnline(w http.ResponseWriter, r *http.Request) {
	identities := h.presence.OnlineIdentities()
	respondJSON(w, r, http.StatusOK, success(models.OnlineIdentities{
		Identities: identities,
		Count:      len(identities),
	}))
}

// PresenceIdentity reports whether one identity is online. An offline
// identity is a normal 200 response, not a 404.
func (h *Handler) PresenceIdentity(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if err := validation.ValidateIdentity(identity); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	count := h.presence.ConnectionCount(identity)
	respondJSON(w, r, http.StatusOK, success(models.IdentityPresence{
		Identity:    identity,
		Online:      count > 0,
		Connections: count,
	}))
}

// DevTokenRequest is the body of POST /api/v1/auth/dev-token.
type DevTokenRequest struct {
	Identity string `json:"identity" validate:"required,identity"`
}

// DevTokenResponse carries a signed token.
type DevTokenResponse struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DevToken signs a JWT for any identity. It is only routed in development.
func (h *Handler) DevToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "token issuing is disabled", nil)
		return
	}

	var req DevTokenRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "request body must be JSON: {\"identity\": \"...\"}", nil)
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		var verr *validation.RequestValidationError
		details := map[string]interface{}{}
		if errors.As(err, &verr) {
			for _, f := range verr.Fields {
				details[f.Field] = f.Message
			}
		}
		respondValidationError(w, r, err.Error(), details)
		return
	}

	token, err := h.tokens.GenerateToken(req.Identity)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to sign token", err)
		return
	}

	respondJSON(w, r, http.StatusOK, success(DevTokenResponse{
		Token:     token,
		Identity:  req.Identity,
		ExpiresAt: time.Now().Add(h.tokenTTL).UTC(),
	}))
}
