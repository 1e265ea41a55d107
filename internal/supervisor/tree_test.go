// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package supervisor

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/relaychat/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// countingService fails its first failures runs, then blocks until canceled.
type countingService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func waitForStarts(t *testing.T, svc *countingService, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.starts.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s started %d times, want at least %d", svc.name, svc.starts.Load(), want)
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tree, err := NewSupervisorTree(logging.NewSlogLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree error: %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor should not be nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}
}

func TestSupervisorTree_StartsEveryLayer(t *testing.T) {
	tree, _ := NewSupervisorTree(logging.NewSlogLogger(), TreeConfig{ShutdownTimeout: time.Second})

	transport := &countingService{name: "transport"}
	messaging := &countingService{name: "messaging"}
	api := &countingService{name: "api"}
	tree.AddTransportService(transport)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitForStarts(t, transport, 1)
	waitForStarts(t, messaging, 1)
	waitForStarts(t, api, 1)

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}

func TestSupervisorTree_RestartsFailingService(t *testing.T) {
	tree, _ := NewSupervisorTree(logging.NewSlogLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	relay := &countingService{name: "relay", failures: 2}
	server := &countingService{name: "http"}
	tree.AddMessagingService(relay)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitForStarts(t, relay, 3)
	waitForStarts(t, server, 1)

	if server.starts.Load() != 1 {
		t.Errorf("a failure in messaging restarted the api layer: %d starts", server.starts.Load())
	}
}

func TestSupervisorTree_RemoveMessagingService(t *testing.T) {
	tree, _ := NewSupervisorTree(logging.NewSlogLogger(), TreeConfig{ShutdownTimeout: time.Second})

	svc := &countingService{name: "removable"}
	token := tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)
	waitForStarts(t, svc, 1)

	if err := tree.RemoveMessagingService(token); err != nil {
		t.Errorf("RemoveMessagingService error: %v", err)
	}
}
