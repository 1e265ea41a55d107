// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package testinfra starts real backing services in Docker for integration
// tests, using testcontainers-go.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// # Redis Container
//
//	func TestRedisRelay(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redis, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, redis)
//
//	    cfg := relay.DefaultRedisConfig()
//	    cfg.Addr = redis.Addr
//	}
//
// The embedded NATS server needs no container; relay tests start it in
// process.
package testinfra
