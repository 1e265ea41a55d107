// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package presence

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
	"github.com/tomtom215/relaychat/internal/relay"
	"github.com/tomtom215/relaychat/internal/session"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type event struct {
	topic string
	msg   *models.ChatMessage
}

type recordingDeliverer struct {
	mu     sync.Mutex
	events []event
}

func (d *recordingDeliverer) DeliverToTopic(topic string, payload []byte) int {
	msg, err := models.DecodeChatMessage(payload)
	if err != nil {
		panic(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event{topic: topic, msg: msg})
	return 1
}

func (d *recordingDeliverer) all() []event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]event(nil), d.events...)
}

type rejectingRelay struct{}

func (rejectingRelay) Publish(context.Context, models.Channel, *models.ChatMessage) error {
	return errors.New("rejected")
}
func (rejectingRelay) Serve(ctx context.Context) error { <-ctx.Done(); return nil }
func (rejectingRelay) Healthy() bool                   { return false }
func (rejectingRelay) Mode() string                    { return "rejecting" }

func TestOnlineOfflineTransitions(t *testing.T) {
	local := &recordingDeliverer{}
	pub := NewPublisher(relay.NewLocalRelay(local), 0)
	registry := session.NewRegistry(pub)

	steps := []struct {
		name      string
		action    func()
		wantTotal int
	}{
		{"first connection", func() { _ = registry.Register("c1", "alice") }, 1},
		{"second tab", func() { _ = registry.Register("c2", "alice") }, 1},
		{"close one tab", func() { registry.Unregister("c1") }, 1},
		{"close last tab", func() { registry.Unregister("c2") }, 2},
	}
	for _, step := range steps {
		step.action()
		if got := len(local.all()); got != step.wantTotal {
			t.Fatalf("after %s: %d events, want %d", step.name, got, step.wantTotal)
		}
	}

	events := local.all()
	for i, want := range []models.MessageKind{models.KindJoin, models.KindLeave} {
		if events[i].topic != "topic/presence" {
			t.Errorf("event %d topic = %q, want topic/presence", i, events[i].topic)
		}
		if events[i].msg.Kind != want || events[i].msg.Sender != "alice" || events[i].msg.RoomID != "" {
			t.Errorf("event %d = %+v", i, events[i].msg)
		}
	}
}

func TestRoomScopedEvents(t *testing.T) {
	local := &recordingDeliverer{}
	pub := NewPublisher(relay.NewLocalRelay(local), 0)
	ctx := context.Background()

	if err := pub.RoomJoined(ctx, "alice", "R1"); err != nil {
		t.Fatalf("RoomJoined() error = %v", err)
	}
	if err := pub.RoomLeft(ctx, "alice", "R1"); err != nil {
		t.Fatalf("RoomLeft() error = %v", err)
	}

	events := local.all()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].topic != "topic/room/R1" || events[0].msg.Kind != models.KindJoin || events[0].msg.RoomID != "R1" {
		t.Errorf("join event = %s %+v", events[0].topic, events[0].msg)
	}
	if events[1].msg.Kind != models.KindLeave || events[1].msg.Content != "" {
		t.Errorf("leave event = %+v", events[1].msg)
	}
}

func TestPublishFailureIsReported(t *testing.T) {
	pub := NewPublisher(rejectingRelay{}, 0)
	if err := pub.RoomJoined(context.Background(), "alice", "R1"); err == nil {
		t.Error("RoomJoined() error = nil, want relay error")
	}

	// Registry callbacks swallow the error; registration still succeeds.
	registry := session.NewRegistry(pub)
	if err := registry.Register("c1", "bob"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !registry.IsOnline("bob") {
		t.Error("bob should be online despite the presence failure")
	}
}
