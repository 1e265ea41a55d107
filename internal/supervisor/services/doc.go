// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package services adapts Relaychat components to suture.Service.
//
// Each wrapper depends on a small interface rather than the concrete type,
// so the supervisor package never imports websocket or relay and the
// wrappers can be tested with doubles:
//
//   - HTTPServerService: *http.Server (ListenAndServe/Shutdown)
//   - DispatcherService: *websocket.Dispatcher (RunWithContext)
//   - RelayService: relay.Relay (Serve)
//   - EmbeddedNATSService: *relay.EmbeddedServer (IsRunning/Shutdown)
package services
