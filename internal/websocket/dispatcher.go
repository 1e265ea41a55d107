// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/metrics"
)

// ShutdownReason identifies why the dispatcher stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

const topicShardCount = 32

type topicShard struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
}

// Dispatcher delivers payloads to the connections of this process that are
// subscribed to a topic. Subscription changes and deliveries on different
// topics proceed in parallel; each topic shard has its own lock.
type Dispatcher struct {
	shards [topicShardCount]*topicShard

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{clients: make(map[*Client]struct{})}
	for i := range d.shards {
		d.shards[i] = &topicShard{topics: make(map[string]map[*Client]struct{})}
	}
	return d
}

func (d *Dispatcher) shardFor(topic string) *topicShard {
	return d.shards[xxhash.Sum64String(topic)%topicShardCount]
}

// Attach tracks a live client so it can be closed on shutdown.
func (d *Dispatcher) Attach(c *Client) {
	d.mu.Lock()
	d.clients[c] = struct{}{}
	total := len(d.clients)
	d.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Debug().Int("total_clients", total).Str("connection_id", c.ID()).Msg("websocket client attached")
}

// Detach removes the client and all of its subscriptions.
func (d *Dispatcher) Detach(c *Client) {
	d.mu.Lock()
	_, ok := d.clients[c]
	delete(d.clients, c)
	total := len(d.clients)
	d.mu.Unlock()

	if !ok {
		return
	}
	for _, topic := range c.Topics() {
		d.Unsubscribe(c, topic)
	}
	metrics.WSConnections.Dec()
	logging.Debug().Int("total_clients", total).Str("connection_id", c.ID()).Msg("websocket client detached")
}

// Subscribe adds c to topic. It reports false if c was already subscribed.
func (d *Dispatcher) Subscribe(c *Client, topic string) bool {
	s := d.shardFor(topic)
	s.mu.Lock()
	subs, ok := s.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		s.topics[topic] = subs
		metrics.DispatchTopics.Inc()
	}
	_, exists := subs[c]
	subs[c] = struct{}{}
	s.mu.Unlock()

	if !exists {
		c.trackTopic(topic, true)
	}
	return !exists
}

// Unsubscribe removes c from topic.
func (d *Dispatcher) Unsubscribe(c *Client, topic string) {
	s := d.shardFor(topic)
	s.mu.Lock()
	if subs, ok := s.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(s.topics, topic)
			metrics.DispatchTopics.Dec()
		}
	}
	s.mu.Unlock()

	c.trackTopic(topic, false)
}

// SubscriberCount returns the number of local subscribers of topic.
func (d *Dispatcher) SubscriberCount(topic string) int {
	s := d.shardFor(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}

// GetClientCount returns the number of attached clients.
func (d *Dispatcher) GetClientCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// DeliverToTopic pushes payload, an encoded ChatMessage, to every local
// subscriber of topic and returns how many accepted it. No subscribers is a
// no-op. The call never blocks on a slow client: a full send buffer
// disconnects that client instead.
func (d *Dispatcher) DeliverToTopic(topic string, payload []byte) int {
	s := d.shardFor(topic)
	s.mu.RLock()
	subs := s.topics[topic]
	if len(subs) == 0 {
		s.mu.RUnlock()
		return 0
	}
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	frame, err := messageFrame(topic, payload)
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("failed to encode MESSAGE frame")
		return 0
	}

	// Stable order keeps delivery reproducible in tests and logs.
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	delivered := 0
	for _, c := range clients {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		if !c.IsClosed() {
			c.closeSlow()
		}
	}
	metrics.DispatchDeliveries.Add(float64(delivered))
	return delivered
}

// RunWithContext blocks until ctx is done, then closes every attached client.
// It is meant to run under a supervisor.
func (d *Dispatcher) RunWithContext(ctx context.Context) error {
	<-ctx.Done()

	count := d.GetClientCount()
	d.closeAllClients()

	logging.Info().
		Str("component", "dispatcher").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("dispatcher stopped")
	return ctx.Err()
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (d *Dispatcher) closeAllClients() {
	d.mu.RLock()
	clients := make([]*Client, 0, len(d.clients))
	for c := range d.clients {
		clients = append(clients, c)
	}
	d.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		c.shutdown(closeGoingAway, "server shutting down")
	}
}
