// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package api

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/relaychat/internal/auth"
	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const testSecret = "a8Fk2mPq9xLw4Rt7Zc1Vb6Nd3Hs5Jg0Y"

type fakePresence struct {
	conns map[string]int
}

func (f *fakePresence) IsOnline(identity string) bool       { return f.conns[identity] > 0 }
func (f *fakePresence) ConnectionCount(identity string) int { return f.conns[identity] }
func (f *fakePresence) Len() int {
	n := 0
	for _, c := range f.conns {
		n += c
	}
	return n
}

func (f *fakePresence) OnlineIdentities() []string {
	out := make([]string, 0, len(f.conns))
	for id, c := range f.conns {
		if c > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

type fakeRelay struct {
	healthy atomic.Bool
}

func (f *fakeRelay) Healthy() bool { return f.healthy.Load() }
func (f *fakeRelay) Mode() string  { return "nats" }

type failingIssuer struct{}

func (failingIssuer) GenerateToken(string) (string, error) { return "", errors.New("signer offline") }

type routerFixture struct {
	presence *fakePresence
	relay    *fakeRelay
	gateway  atomic.Int32
	handler  http.Handler
}

func newRouterFixture(t *testing.T, tokens TokenIssuer, devTokens bool, mw *ChiMiddlewareConfig) *routerFixture {
	t.Helper()
	f := &routerFixture{
		presence: &fakePresence{conns: map[string]int{"bob": 1, "alice": 2}},
		relay:    &fakeRelay{},
	}
	f.relay.healthy.Store(true)

	gateway := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f.gateway.Add(1)
		w.WriteHeader(http.StatusSwitchingProtocols)
	})

	h := NewHandler(f.presence, f.relay, tokens, time.Hour)
	f.handler = NewRouter(h, gateway, NewChiMiddleware(mw), devTokens).Setup()
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp models.APIResponse
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t, nil, false, nil)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("envelope status = %q", resp.Status)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestHealthReady(t *testing.T) {
	f := newRouterFixture(t, nil, false, nil)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("healthy relay: status = %d/%q", rec.Code, resp.Status)
	}
	data := resp.Data.(map[string]interface{})
	if data["relay_mode"] != "nats" || data["relay_healthy"] != true || data["sessions"] != float64(3) {
		t.Errorf("ready data = %v", data)
	}

	f.relay.healthy.Store(false)
	rec, resp = f.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy relay: status = %d, want 503", rec.Code)
	}
	if resp.Status != "not_ready" {
		t.Errorf("envelope status = %q, want not_ready", resp.Status)
	}
	if data := resp.Data.(map[string]interface{}); data["status"] != "degraded" {
		t.Errorf("data status = %v, want degraded", data["status"])
	}
}

func TestPresenceOnline(t *testing.T) {
	f := newRouterFixture(t, nil, false, nil)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/presence/online", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	ids := data["identities"].([]interface{})
	if len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Errorf("identities = %v, want [alice bob]", ids)
	}
	if data["count"] != float64(2) {
		t.Errorf("count = %v", data["count"])
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}

func TestPresenceIdentity(t *testing.T) {
	f := newRouterFixture(t, nil, false, nil)

	tests := []struct {
		name       string
		identity   string
		wantStatus int
		wantOnline bool
		wantConns  float64
	}{
		{name: "online with two tabs", identity: "alice", wantStatus: http.StatusOK, wantOnline: true, wantConns: 2},
		{name: "offline is not an error", identity: "dave", wantStatus: http.StatusOK},
		{name: "colon is rejected", identity: "a:b", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := f.do(t, http.MethodGet, "/api/v1/presence/"+tt.identity, "", nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				if resp.Error == nil || resp.Error.Code != ErrCodeBadRequest {
					t.Errorf("error = %+v", resp.Error)
				}
				return
			}
			data := resp.Data.(map[string]interface{})
			if data["online"] != tt.wantOnline || data["connections"] != tt.wantConns {
				t.Errorf("presence = %v", data)
			}
		})
	}
}

func TestETagNotModified(t *testing.T) {
	f := newRouterFixture(t, nil, false, nil)

	first, _ := f.do(t, http.MethodGet, "/api/v1/presence/online", "", nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("ETag missing")
	}

	time.Sleep(2 * time.Millisecond)
	second, _ := f.do(t, http.MethodGet, "/api/v1/presence/online", "", map[string]string{"If-None-Match": etag})
	if second.Code != http.StatusNotModified {
		t.Errorf("unchanged presence: status = %d, want 304", second.Code)
	}

	f.presence.conns["carol"] = 1
	third, _ := f.do(t, http.MethodGet, "/api/v1/presence/online", "", map[string]string{"If-None-Match": etag})
	if third.Code != http.StatusOK {
		t.Errorf("changed presence: status = %d, want 200", third.Code)
	}
}

func TestDevToken(t *testing.T) {
	manager, err := auth.NewJWTManager(testSecret, time.Hour, "relaychat-test")
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	f := newRouterFixture(t, manager, true, nil)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/dev-token", `{"identity":"alice"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	token := resp.Data.(map[string]interface{})["token"].(string)
	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Identity() != "alice" {
		t.Errorf("token identity = %q", claims.Identity())
	}

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "not json", body: "identity=alice", wantCode: ErrCodeBadRequest},
		{name: "missing identity", body: `{}`, wantCode: ErrCodeValidationFailed},
		{name: "identity with space", body: `{"identity":"a b"}`, wantCode: ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/dev-token", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestDevToken_SignerFailure(t *testing.T) {
	f := newRouterFixture(t, failingIssuer{}, true, nil)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/dev-token", `{"identity":"alice"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "signer offline") {
		t.Error("internal error text leaked to client")
	}
	if resp.Error.Code != ErrCodeInternalError {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestDevToken_NotRoutedOutsideDevelopment(t *testing.T) {
	f := newRouterFixture(t, failingIssuer{}, false, nil)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/auth/dev-token", `{"identity":"alice"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestDevToken_NilIssuer(t *testing.T) {
	f := newRouterFixture(t, nil, true, nil)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/auth/dev-token", `{"identity":"alice"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
