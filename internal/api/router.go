// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/relaychat/internal/middleware"
)

// Router wires handlers, the WebSocket gateway and middleware.
type Router struct {
	handler       *Handler
	gateway       http.Handler
	chiMiddleware *ChiMiddleware
	devTokens     bool
}

// NewRouter builds a router. gateway is the WebSocket endpoint handler;
// devTokens routes POST /api/v1/auth/dev-token.
func NewRouter(handler *Handler, gateway http.Handler, mw *ChiMiddleware, devTokens bool) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, gateway: gateway, chiMiddleware: mw, devTokens: devTokens}
}

// Setup returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, ErrCodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed", nil)
	})

	// Origin checks for upgrades happen in the gateway.
	r.With(router.chiMiddleware.RateLimitHandshake()).Get("/ws", router.gateway.ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.CORS())

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
		})

		r.Route("/presence", func(r chi.Router) {
			r.Get("/online", router.handler.PresenceOnline)
			r.Get("/{identity}", router.handler.PresenceIdentity)
		})

		if router.devTokens {
			r.Post("/auth/dev-token", router.handler.DevToken)
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
