// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package relay fans chat messages out across every process of a cluster.

A publisher sends each message to one of three bus channels (room_messages,
private_messages, user_activity). Every process subscribes to all three
and hands each received payload to its local dispatcher, addressed by the
payload itself: the room topic, the sorted-pair private topic, or the global
presence topic. Each process then delivers to the sockets it holds.

# Backends

  - nats: core NATS pub/sub through watermill-nats, optionally against an
    embedded nats-server for single-node deployments
  - redis: Redis PUBLISH/SUBSCRIBE through go-redis
  - memory: a watermill GoChannel shared inside one process (tests, dev)
  - local: no bus; messages go straight to the local dispatcher

# Degradation

Bus publishes run behind a gobreaker circuit breaker. When the bus rejects a
publish, or the breaker is open, the message is delivered to local
subscribers only and Publish still returns nil; the caller's send is never
lost on this process. Subscribers drop and log payloads that fail to decode
and keep consuming.

Delivery is at most once. Nothing is replayed for processes that were not
subscribed when a message was published.
*/
package relay
