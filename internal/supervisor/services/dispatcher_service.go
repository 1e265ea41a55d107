// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package services

import "context"

// ContextDispatcher is satisfied by *websocket.Dispatcher.
type ContextDispatcher interface {
	RunWithContext(ctx context.Context) error
}

// DispatcherService closes every live connection when the tree stops.
type DispatcherService struct {
	dispatcher ContextDispatcher
	name       string
}

// NewDispatcherService wraps d.
func NewDispatcherService(d ContextDispatcher) *DispatcherService {
	return &DispatcherService{dispatcher: d, name: "websocket-dispatcher"}
}

// Serve implements suture.Service.
func (s *DispatcherService) Serve(ctx context.Context) error {
	return s.dispatcher.RunWithContext(ctx)
}

func (s *DispatcherService) String() string {
	return s.name
}
