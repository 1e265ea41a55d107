// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := Logger()
	previousLevel := zerolog.GlobalLevel()
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		SetLogger(previous)
		zerolog.SetGlobalLevel(previousLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"DEBUG":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"bogus":    zerolog.InfoLevel,
	}
	for input, want := range tests {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCtxAddsConnectionFields(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithConnection(context.Background(), "conn-1", "alice")
	ctx = ContextWithCorrelationID(ctx, "abcd1234")
	Ctx(ctx).Info().Msg("frame handled")

	out := buf.String()
	for _, want := range []string{`"connection_id":"conn-1"`, `"identity":"alice"`, `"correlation_id":"abcd1234"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	buf := captureGlobal(t)

	logger := NewSlogLogger().With("supervisor", "root").WithGroup("event")
	logger.Warn("service failed", "service", "relay", "err", errors.New("boom"))

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"supervisor":"root"`, `"event.service":"relay"`, `"event.err":"boom"`, `service failed`} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output %s missing %s", out, want)
		}
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	h := &SlogHandler{logger: NewTestLogger(&bytes.Buffer{}).Level(zerolog.WarnLevel)}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled on a warn logger")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled on a warn logger")
	}
}

func TestWatermillAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillAdapterWithLogger(NewTestLogger(&buf))

	adapter.With(watermill.LogFields{"topic": "room_messages"}).
		Error("publish failed", errors.New("nats: connection closed"), watermill.LogFields{"attempt": 1})

	out := buf.String()
	for _, want := range []string{`"topic":"room_messages"`, `"attempt":1`, `nats: connection closed`, `publish failed`} {
		if !strings.Contains(out, want) {
			t.Errorf("watermill output %s missing %s", out, want)
		}
	}
}
