// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

//go:build integration

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/relaychat/internal/models"
	"github.com/tomtom215/relaychat/internal/testinfra"
)

func startRedis(t *testing.T) string {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	redis, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("NewRedisContainer() error = %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, context.Background(), redis) })
	return redis.Addr
}

func newRedisRelay(t *testing.T, addr string, local Deliverer) *BusRelay {
	t.Helper()
	cfg := DefaultRedisConfig()
	cfg.Addr = addr

	r := NewBusRelay(NewRedisBus(cfg), local, DefaultConfig())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisRelayAcrossProcesses_Integration(t *testing.T) {
	addr := startRedis(t)

	p1, p2 := &recordingDeliverer{}, &recordingDeliverer{}
	r1 := newRedisRelay(t, addr, p1)
	r2 := newRedisRelay(t, addr, p2)
	serve(t, r1)
	serve(t, r2)

	if !r1.Healthy() || r1.Mode() != "redis" {
		t.Fatalf("Healthy() = %v, Mode() = %q", r1.Healthy(), r1.Mode())
	}

	ctx := context.Background()
	if err := Send(ctx, r1, models.NewDirectMessage("bob", "alice", "hi alice")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got := p2.waitFor(t, 1)
	if got[0].topic != "topic/private/alice:bob" || got[0].message.Content != "hi alice" {
		t.Errorf("process 2 delivery = %+v", got[0])
	}
	p1.waitFor(t, 1)

	if err := Send(ctx, r2, models.NewJoin("carol", "")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got = p1.waitFor(t, 2)
	if got[1].topic != "topic/presence" {
		t.Errorf("presence delivered on %q", got[1].topic)
	}
}

func TestRedisRelayFallsBackWhenUnreachable_Integration(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond

	local := &recordingDeliverer{}
	r := NewBusRelay(NewRedisBus(cfg), local, DefaultConfig())
	t.Cleanup(func() { _ = r.Close() })

	if r.Healthy() {
		t.Fatal("relay should be unhealthy without a server")
	}
	if err := Send(context.Background(), r, models.NewRoomMessage("alice", "42", "local only")); err != nil {
		t.Fatalf("Send() error = %v, want nil on fallback", err)
	}
	got := local.waitFor(t, 1)
	if got[0].topic != "topic/room/42" {
		t.Errorf("delivery topic = %q", got[0].topic)
	}
}
