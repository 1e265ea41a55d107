// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCredentialsFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		want   Credentials
	}{
		{"bearer header", "/ws", "Bearer abc", Credentials{Token: "abc"}},
		{"token query", "/ws?token=abc", "", Credentials{Token: "abc"}},
		{"access_token query", "/ws?access_token=abc", "", Credentials{Token: "abc"}},
		{"header wins over query", "/ws?token=query", "Bearer header", Credentials{Token: "header"}},
		{"username query", "/ws?username=alice", "", Credentials{Username: "alice"}},
		{"non bearer header ignored", "/ws", "Basic Zm9vOmJhcg==", Credentials{}},
		{"nothing", "/ws", "", Credentials{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := CredentialsFromRequest(r); got != tt.want {
				t.Errorf("CredentialsFromRequest = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUsernameAuthenticator(t *testing.T) {
	a := NewUsernameAuthenticator()
	ctx := context.Background()

	if id, err := a.Authenticate(ctx, Credentials{Username: "alice"}); err != nil || id != "alice" {
		t.Errorf("Authenticate(alice) = %q, %v", id, err)
	}
	if _, err := a.Authenticate(ctx, Credentials{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("empty credentials error = %v", err)
	}
	if _, err := a.Authenticate(ctx, Credentials{Username: "bad:name"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("invalid username error = %v", err)
	}
}

func TestMultiAuthenticatorFailsClosed(t *testing.T) {
	m := newTestManager(t, time.Hour)
	multi, err := NewAuthenticator(AuthModeMulti, m)
	if err != nil {
		t.Fatalf("NewAuthenticator error: %v", err)
	}
	ctx := context.Background()

	token, _ := m.GenerateToken("bob")
	if id, err := multi.Authenticate(ctx, Credentials{Token: token}); err != nil || id != "bob" {
		t.Errorf("token auth = %q, %v", id, err)
	}

	if id, err := multi.Authenticate(ctx, Credentials{Username: "carol"}); err != nil || id != "carol" {
		t.Errorf("username fallback = %q, %v", id, err)
	}

	// An invalid token must not fall through to the username.
	if _, err := multi.Authenticate(ctx, Credentials{Token: "forged", Username: "carol"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("forged token error = %v, want ErrInvalidCredentials", err)
	}

	if _, err := multi.Authenticate(ctx, Credentials{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("no credentials error = %v", err)
	}
}

func TestNewAuthenticatorModes(t *testing.T) {
	if _, err := NewAuthenticator(AuthModeJWT, nil); err == nil {
		t.Error("jwt mode without manager should fail")
	}
	if _, err := NewAuthenticator("ldap", nil); err == nil {
		t.Error("unknown mode should fail")
	}
	a, err := NewAuthenticator(AuthModeUsername, nil)
	if err != nil || a.Name() != "username" {
		t.Errorf("username mode = %v, %v", a, err)
	}
}
