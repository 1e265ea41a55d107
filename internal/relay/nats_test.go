// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
)

func startEmbeddedNATS(t *testing.T) *EmbeddedServer {
	t.Helper()
	cfg := DefaultEmbeddedServerConfig()
	cfg.Port = -1
	cfg.StartTimeout = 10 * time.Second

	srv, err := NewEmbeddedServer(cfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func newNATSRelay(t *testing.T, url string, local Deliverer) *BusRelay {
	t.Helper()
	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.MaxReconnects = 0
	cfg.CloseTimeout = time.Second

	bus, err := NewNATSBus(cfg, logging.NewWatermillAdapter())
	if err != nil {
		t.Fatalf("NewNATSBus() error = %v", err)
	}
	r := NewBusRelay(bus, local, DefaultConfig())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNATSRelayAcrossProcesses(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	srv := startEmbeddedNATS(t)
	if !srv.IsRunning() {
		t.Fatal("embedded server should be running")
	}

	p1, p2 := &recordingDeliverer{}, &recordingDeliverer{}
	r1 := newNATSRelay(t, srv.ClientURL(), p1)
	r2 := newNATSRelay(t, srv.ClientURL(), p2)
	serve(t, r1)
	serve(t, r2)

	if !r1.Healthy() || r1.Mode() != "nats" {
		t.Fatalf("Healthy() = %v, Mode() = %q", r1.Healthy(), r1.Mode())
	}

	ctx := context.Background()
	// Bob is connected to process 2; Alice sends from process 1.
	if err := Send(ctx, r1, models.NewDirectMessage("alice", "bob", "hi bob")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got := p2.waitFor(t, 1)
	if got[0].topic != "topic/private/alice:bob" || got[0].message.Content != "hi bob" {
		t.Errorf("process 2 delivery = %+v", got[0])
	}
	p1.waitFor(t, 1)

	// Ordering within one conversation is preserved.
	for _, content := range []string{"one", "two", "three"} {
		if err := Send(ctx, r1, models.NewRoomMessage("alice", "42", content)); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	got = p2.waitFor(t, 4)
	for i, want := range []string{"one", "two", "three"} {
		if got[i+1].message.Content != want {
			t.Errorf("delivery %d = %q, want %q", i+1, got[i+1].message.Content, want)
		}
	}
}

func TestNATSRelayFallsBackWhenServerStops(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	srv := startEmbeddedNATS(t)

	local := &recordingDeliverer{}
	r := newNATSRelay(t, srv.ClientURL(), local)
	serve(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for r.Healthy() {
		if time.Now().After(deadline) {
			t.Fatal("relay still healthy after the NATS server stopped")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := Send(context.Background(), r, models.NewRoomMessage("alice", "42", "offline")); err != nil {
		t.Fatalf("Send() error = %v, want nil on fallback", err)
	}
	got := local.waitFor(t, 1)
	if got[0].message.Content != "offline" {
		t.Errorf("delivery = %+v", got[0].message)
	}
}
