// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/relaychat/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func serveWithRequestID(t *testing.T, header string) (contextID, correlationID, responseID string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = GetRequestID(r.Context())
		correlationID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return contextID, correlationID, rec.Header().Get(RequestIDHeader)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantHeader bool
	}{
		{name: "generates id", header: ""},
		{name: "preserves upstream id", header: "edge-7f3a", wantHeader: true},
		{name: "replaces oversized id", header: strings.Repeat("x", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctxID, corrID, respID := serveWithRequestID(t, tt.header)

			if respID == "" {
				t.Fatal("X-Request-ID missing from response")
			}
			if ctxID != respID {
				t.Errorf("context id %q != response id %q", ctxID, respID)
			}
			if corrID != respID {
				t.Errorf("correlation id %q != request id %q", corrID, respID)
			}
			if tt.wantHeader {
				if respID != tt.header {
					t.Errorf("upstream id replaced: got %q", respID)
				}
				return
			}
			if _, err := uuid.Parse(respID); err != nil {
				t.Errorf("generated id %q is not a UUID: %v", respID, err)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("GetRequestID without middleware = %q, want empty", id)
	}
}
