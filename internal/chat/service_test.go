// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package chat

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
	"github.com/tomtom215/relaychat/internal/presence"
	"github.com/tomtom215/relaychat/internal/relay"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type fakeConn struct {
	id       string
	identity string
	mu       sync.Mutex
	rooms    map[string]struct{}
}

func newFakeConn(identity string) *fakeConn {
	return &fakeConn{identity: identity, rooms: make(map[string]struct{})}
}

func (c *fakeConn) ID() string {
	if c.id != "" {
		return c.id
	}
	return "conn-" + c.identity
}

func (c *fakeConn) Identity() string { return c.identity }

func (c *fakeConn) JoinRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; ok {
		return false
	}
	c.rooms[roomID] = struct{}{}
	return true
}

func (c *fakeConn) LeaveRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; !ok {
		return false
	}
	delete(c.rooms, roomID)
	return true
}

func (c *fakeConn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*models.ChatMessage
	err   error
}

func (s *fakeStore) Save(_ context.Context, msg *models.ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, msg)
	return "id", nil
}

type fakeDirectory struct {
	mu         sync.Mutex
	known      map[string]bool
	err        error
	remembered []string
}

func (d *fakeDirectory) Exists(_ context.Context, identity string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.known[identity], nil
}

func (d *fakeDirectory) Remember(_ context.Context, identity string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remembered = append(d.remembered, identity)
	if d.known == nil {
		d.known = make(map[string]bool)
	}
	d.known[identity] = true
	return nil
}

type delivered struct {
	topic string
	msg   *models.ChatMessage
}

type recordingDeliverer struct {
	mu  sync.Mutex
	out []delivered
}

func (d *recordingDeliverer) DeliverToTopic(topic string, payload []byte) int {
	msg, err := models.DecodeChatMessage(payload)
	if err != nil {
		panic(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out = append(d.out, delivered{topic: topic, msg: msg})
	return 1
}

func (d *recordingDeliverer) all() []delivered {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivered(nil), d.out...)
}

type fixture struct {
	service   *Service
	store     *fakeStore
	directory *fakeDirectory
	local     *recordingDeliverer
}

func newFixture() *fixture {
	local := &recordingDeliverer{}
	r := relay.NewLocalRelay(local)
	f := &fixture{
		store:     &fakeStore{},
		directory: &fakeDirectory{known: map[string]bool{"bob": true}},
		local:     local,
	}
	f.service = NewService(r, f.store, f.directory, presence.NewPublisher(r, 0), time.Second)
	return f
}

func TestSendMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	err := f.service.SendMessage(ctx, newFakeConn("alice"), []byte(`{"roomId":"42","content":"hello","sender":"mallory"}`))
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	out := f.local.all()
	if len(out) != 1 || out[0].topic != "topic/room/42" {
		t.Fatalf("deliveries = %+v", out)
	}
	if out[0].msg.Sender != "alice" {
		t.Errorf("sender = %q, want the connection identity", out[0].msg.Sender)
	}
	if out[0].msg.Kind != models.KindChat || out[0].msg.SentAt.IsZero() {
		t.Errorf("message = %+v", out[0].msg)
	}
	if len(f.store.saved) != 1 {
		t.Errorf("stored %d messages, want 1", len(f.store.saved))
	}
}

func TestSendMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"not json", `{roomId`, ErrInvalidBody.Error()},
		{"empty body", ``, "required"},
		{"missing content", `{"roomId":"42"}`, "content"},
		{"bad room id", `{"roomId":"a/b","content":"x"}`, "roomId"},
		{"too long", `{"roomId":"42","content":"` + strings.Repeat("x", 4097) + `"}`, "at most"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			err := f.service.SendMessage(context.Background(), newFakeConn("alice"), []byte(tt.body))
			if err == nil {
				t.Fatal("SendMessage() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantMsg)
			}
			if len(f.local.all()) != 0 || len(f.store.saved) != 0 {
				t.Error("invalid request must not be stored or relayed")
			}
		})
	}
}

func TestSendMessageStoreFailureIsRequestError(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("disk full")

	err := f.service.SendMessage(context.Background(), newFakeConn("alice"), []byte(`{"roomId":"42","content":"hi"}`))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
	if len(f.local.all()) != 0 {
		t.Error("unstored message must not be relayed")
	}
}

func TestSendPrivate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.service.SendPrivate(ctx, newFakeConn("alice"), []byte(`{"receiver":"bob","content":"hi bob"}`)); err != nil {
		t.Fatalf("SendPrivate() error = %v", err)
	}
	out := f.local.all()
	if len(out) != 1 || out[0].topic != "topic/private/alice:bob" {
		t.Fatalf("deliveries = %+v", out)
	}
	if out[0].msg.Receiver != "bob" || out[0].msg.RoomID != "" {
		t.Errorf("message = %+v", out[0].msg)
	}
}

func TestSendPrivateErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		dirErr  error
		wantErr error
	}{
		{"to self", `{"receiver":"alice","content":"me"}`, nil, ErrSelfMessage},
		{"unknown recipient", `{"receiver":"zoe","content":"hi"}`, nil, ErrUnknownRecipient},
		{"lookup failure", `{"receiver":"bob","content":"hi"}`, errors.New("timeout"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.directory.err = tt.dirErr

			err := f.service.SendPrivate(context.Background(), newFakeConn("alice"), []byte(tt.body))
			if err == nil {
				t.Fatal("SendPrivate() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if len(f.local.all()) != 0 {
				t.Error("rejected message must not be relayed")
			}
		})
	}
}

func TestRoomMembership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := newFakeConn("alice")

	for i := 0; i < 2; i++ {
		if err := f.service.AddUser(ctx, conn, []byte(`{"roomId":"R1"}`)); err != nil {
			t.Fatalf("AddUser() error = %v", err)
		}
	}
	out := f.local.all()
	if len(out) != 1 {
		t.Fatalf("repeated join produced %d events, want 1", len(out))
	}
	if out[0].topic != "topic/room/R1" || out[0].msg.Kind != models.KindJoin || out[0].msg.Sender != "alice" {
		t.Errorf("join = %s %+v", out[0].topic, out[0].msg)
	}

	if err := f.service.RemoveUser(ctx, conn, []byte(`{"roomId":"R1"}`)); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	if err := f.service.RemoveUser(ctx, conn, []byte(`{"roomId":"R1"}`)); err != nil {
		t.Fatalf("second RemoveUser() error = %v", err)
	}
	out = f.local.all()
	if len(out) != 2 || out[1].msg.Kind != models.KindLeave {
		t.Fatalf("events = %+v", out)
	}
	if len(conn.Rooms()) != 0 {
		t.Errorf("Rooms() = %v, want none", conn.Rooms())
	}
}

func TestDisconnectLeavesEveryRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := newFakeConn("carol")
	for _, room := range []string{"a", "b"} {
		if err := f.service.AddUser(ctx, conn, []byte(`{"roomId":"`+room+`"}`)); err != nil {
			t.Fatalf("AddUser() error = %v", err)
		}
	}

	f.service.HandleDisconnect(conn)

	var leaves []string
	for _, d := range f.local.all() {
		if d.msg.Kind == models.KindLeave {
			leaves = append(leaves, d.topic)
		}
	}
	if len(leaves) != 2 || leaves[0] != "topic/room/a" || leaves[1] != "topic/room/b" {
		t.Errorf("LEAVE topics = %v", leaves)
	}
}

func TestRoomMembershipCountsConnectionsPerIdentity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	laptop := newFakeConn("alice")
	laptop.id = "alice-laptop"
	phone := newFakeConn("alice")
	phone.id = "alice-phone"

	kinds := func() []models.MessageKind {
		var out []models.MessageKind
		for _, d := range f.local.all() {
			out = append(out, d.msg.Kind)
		}
		return out
	}

	for _, conn := range []*fakeConn{laptop, phone} {
		if err := f.service.AddUser(ctx, conn, []byte(`{"roomId":"R1"}`)); err != nil {
			t.Fatalf("AddUser(%s) error = %v", conn.ID(), err)
		}
	}
	if got := kinds(); len(got) != 1 || got[0] != models.KindJoin {
		t.Fatalf("after two joins events = %v, want one JOIN", got)
	}

	if err := f.service.RemoveUser(ctx, laptop, []byte(`{"roomId":"R1"}`)); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	if got := kinds(); len(got) != 1 {
		t.Fatalf("LEAVE announced while another connection is still in the room: %v", got)
	}

	f.service.HandleDisconnect(phone)
	got := kinds()
	if len(got) != 2 || got[1] != models.KindLeave {
		t.Fatalf("events = %v, want JOIN then LEAVE", got)
	}

	// Membership starts over once the last connection left.
	if err := f.service.AddUser(ctx, laptop, []byte(`{"roomId":"R1"}`)); err != nil {
		t.Fatalf("rejoin error = %v", err)
	}
	if got := kinds(); len(got) != 3 || got[2] != models.KindJoin {
		t.Errorf("rejoin events = %v", got)
	}
}

func TestConnectRemembersIdentity(t *testing.T) {
	f := newFixture()
	f.service.HandleConnect(newFakeConn("dave"))

	if len(f.directory.remembered) != 1 || f.directory.remembered[0] != "dave" {
		t.Errorf("remembered = %v", f.directory.remembered)
	}
	if err := f.service.SendPrivate(context.Background(), newFakeConn("alice"), []byte(`{"receiver":"dave","content":"hi"}`)); err != nil {
		t.Errorf("SendPrivate() to remembered identity error = %v", err)
	}
}
