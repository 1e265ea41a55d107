// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/metrics"
	"github.com/tomtom215/relaychat/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open() without path should fail")
	}
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	if err := db.Directory().Remember(ctx, "alice"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	ok, err := reopened.Directory().Exists(ctx, "alice")
	if err != nil || !ok {
		t.Errorf("Exists(alice) after reopen = %v, %v", ok, err)
	}
}

func TestMessageStoreSaveAndGet(t *testing.T) {
	store := openTestDB(t).Messages()
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.MessagesStored.WithLabelValues("success"))

	msg := models.NewDirectMessage("alice", "bob", "hello")
	id, err := store.Save(ctx, msg)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned empty id")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != id || got.StoredAt.IsZero() {
		t.Errorf("record = %+v", got)
	}
	if got.Message.Sender != "alice" || got.Message.Receiver != "bob" || got.Message.Content != "hello" {
		t.Errorf("message = %+v", got.Message)
	}

	if after := testutil.ToFloat64(metrics.MessagesStored.WithLabelValues("success")); after-before != 1 {
		t.Errorf("stored counter moved by %v, want 1", after-before)
	}
}

func TestMessageStoreErrors(t *testing.T) {
	store := openTestDB(t).Messages()

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.Save(context.Background(), nil); err == nil {
		t.Error("Save(nil) should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Save(ctx, models.NewRoomMessage("a", "r", "x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() with canceled ctx error = %v", err)
	}
}

func TestMessageStoreUniqueIDs(t *testing.T) {
	store := openTestDB(t).Messages()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := store.Save(ctx, models.NewRoomMessage("alice", "42", fmt.Sprintf("m%d", i)))
			if err != nil {
				t.Errorf("Save() error = %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}
	count, err := store.Count(ctx)
	if err != nil || count != 50 {
		t.Errorf("Count() = %d, %v; want 50", count, err)
	}
}

func TestDirectory(t *testing.T) {
	dir := openTestDB(t).Directory()
	ctx := context.Background()

	ok, err := dir.Exists(ctx, "carol")
	if err != nil || ok {
		t.Fatalf("Exists(carol) before Remember = %v, %v", ok, err)
	}

	if err := dir.Remember(ctx, "carol"); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	first, err := dir.Get(ctx, "carol")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if err := dir.Remember(ctx, "carol"); err != nil {
		t.Fatalf("second Remember() error = %v", err)
	}
	second, _ := dir.Get(ctx, "carol")
	if !second.FirstSeen.Equal(first.FirstSeen) {
		t.Errorf("FirstSeen changed from %v to %v", first.FirstSeen, second.FirstSeen)
	}

	ok, err = dir.Exists(ctx, "carol")
	if err != nil || !ok {
		t.Errorf("Exists(carol) = %v, %v", ok, err)
	}
	if err := dir.Remember(ctx, ""); err == nil {
		t.Error("Remember(\"\") should fail")
	}
}

func TestDirectoryConcurrentRemember(t *testing.T) {
	dir := openTestDB(t).Directory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dir.Remember(ctx, "dave"); err != nil {
				t.Errorf("Remember() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if ok, _ := dir.Exists(ctx, "dave"); !ok {
		t.Error("dave should exist")
	}
}
