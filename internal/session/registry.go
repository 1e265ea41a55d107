// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package session tracks which identities hold open connections on this
// process.
//
// The registry maps connection IDs to identities and keeps the reverse index
// identity -> set of connection IDs, so one identity may hold several
// connections (browser tabs, devices). An identity is online while its set is
// non-empty. State is process-local and rebuilt from nothing on restart.
//
// The forward map is a sync.Map and the reverse index is split across
// independently locked shards, so unrelated connects and disconnects never
// contend on a single lock.
package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/metrics"
)

const shardCount = 32

// Registry errors. Callers log them; they never abort a connection.
var (
	ErrEmptyConnectionID = errors.New("session: connection id is required")
	ErrEmptyIdentity     = errors.New("session: identity is required")
	ErrIdentityMismatch  = errors.New("session: connection already bound to another identity")
)

// Listener is notified when an identity changes between offline and online.
// Callbacks run on the goroutine that caused the transition. Transitions of
// identities in the same shard are delivered one at a time and in order, so
// a listener must not register or unregister connections itself.
// Read-only queries are safe.
type Listener interface {
	IdentityOnline(identity string)
	IdentityOffline(identity string)
}

type shard struct {
	// transition orders state change plus listener calls; mu guards the map.
	transition sync.Mutex
	mu         sync.RWMutex
	byIdentity map[string]map[string]struct{}
}

// Registry is safe for concurrent use.
type Registry struct {
	conns  sync.Map // connection ID -> identity
	shards [shardCount]*shard

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewRegistry creates an empty registry.
func NewRegistry(listeners ...Listener) *Registry {
	r := &Registry{listeners: listeners}
	for i := range r.shards {
		r.shards[i] = &shard{byIdentity: make(map[string]map[string]struct{})}
	}
	return r
}

// AddListener subscribes l to online/offline transitions.
func (r *Registry) AddListener(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) shardFor(identity string) *shard {
	return r.shards[xxhash.Sum64String(identity)%shardCount]
}

// Register records that connectionID belongs to identity. Registering the
// same pair again is a no-op. The first connection of an identity fires
// IdentityOnline.
func (r *Registry) Register(connectionID, identity string) error {
	if connectionID == "" {
		return ErrEmptyConnectionID
	}
	if identity == "" {
		return ErrEmptyIdentity
	}

	if existing, loaded := r.conns.LoadOrStore(connectionID, identity); loaded {
		if existing.(string) != identity {
			return ErrIdentityMismatch
		}
		return nil
	}

	s := r.shardFor(identity)
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	set, ok := s.byIdentity[identity]
	if !ok {
		set = make(map[string]struct{}, 1)
		s.byIdentity[identity] = set
	}
	set[connectionID] = struct{}{}
	first := len(set) == 1
	s.mu.Unlock()

	if first {
		metrics.SessionsOnline.Inc()
		r.notify(identity, true)
	}
	return nil
}

// Unregister removes connectionID. It reports whether the connection was
// known. Removing the last connection of an identity fires IdentityOffline.
func (r *Registry) Unregister(connectionID string) bool {
	value, loaded := r.conns.LoadAndDelete(connectionID)
	if !loaded {
		return false
	}
	identity := value.(string)

	s := r.shardFor(identity)
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	last := false
	if set, ok := s.byIdentity[identity]; ok {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(s.byIdentity, identity)
			last = true
		}
	}
	s.mu.Unlock()

	if last {
		metrics.SessionsOnline.Dec()
		r.notify(identity, false)
	}
	return true
}

func (r *Registry) notify(identity string, online bool) {
	r.listenersMu.RLock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenersMu.RUnlock()

	for _, l := range listeners {
		r.invoke(l, identity, online)
	}
}

func (r *Registry) invoke(l Listener, identity string, online bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Str("identity", identity).
				Bool("online", online).
				Interface("panic", rec).
				Msg("presence listener panicked")
		}
	}()

	if online {
		l.IdentityOnline(identity)
	} else {
		l.IdentityOffline(identity)
	}
}

// IsOnline reports whether identity has at least one connection here.
func (r *Registry) IsOnline(identity string) bool {
	return r.ConnectionCount(identity) > 0
}

// ConnectionCount returns the number of open connections of identity.
func (r *Registry) ConnectionCount(identity string) int {
	s := r.shardFor(identity)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byIdentity[identity])
}

// IdentityOf returns the identity bound to connectionID.
func (r *Registry) IdentityOf(connectionID string) (string, bool) {
	value, ok := r.conns.Load(connectionID)
	if !ok {
		return "", false
	}
	return value.(string), true
}

// Connections returns a sorted snapshot of the connection IDs of identity.
func (r *Registry) Connections(identity string) []string {
	s := r.shardFor(identity)
	s.mu.RLock()
	ids := make([]string, 0, len(s.byIdentity[identity]))
	for id := range s.byIdentity[identity] {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// OnlineIdentities returns a sorted snapshot of online identities. Shards
// are read one at a time so writers are blocked only briefly.
func (r *Registry) OnlineIdentities() []string {
	var identities []string
	for _, s := range r.shards {
		s.mu.RLock()
		for identity := range s.byIdentity {
			identities = append(identities, identity)
		}
		s.mu.RUnlock()
	}
	sort.Strings(identities)
	return identities
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	n := 0
	r.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
