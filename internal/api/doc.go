// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package api exposes the Relaychat HTTP surface on a chi router.

# Routes

	GET  /ws                            WebSocket upgrade (handshake rate limited)
	GET  /api/v1/health/live            liveness probe
	GET  /api/v1/health/ready           readiness probe; 503 while the relay is unhealthy
	GET  /api/v1/presence/online        identities with an open connection on this process
	GET  /api/v1/presence/{identity}    presence of one identity
	POST /api/v1/auth/dev-token         signs a JWT for an identity (development only)
	GET  /metrics                       Prometheus exposition

Every JSON response uses the models.APIResponse envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
	{"status":"error","data":null,"metadata":{...},"error":{"code":"NOT_FOUND","message":"..."}}

# Middleware

RequestID, RealIP and Recoverer apply to every route; CORS (go-chi/cors)
covers the REST endpoints and httprate throttles WebSocket handshakes per
client IP. Presence and health are never cached by clients.
*/
package api
