// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package middleware provides HTTP middleware shared by the API router.

  - RequestID: propagates or generates X-Request-ID and seeds the logging
    correlation ID with it
  - PrometheusMetrics: request count, latency and in-flight gauge, labeled
    by chi route pattern

Both are func(http.Handler) http.Handler and plug straight into chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The metrics wrapper forwards http.Hijacker, so it can sit in front of the
WebSocket upgrade endpoint.
*/
package middleware
