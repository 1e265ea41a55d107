// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Authentication errors.
var (
	// ErrNoCredentials means the credential kind handled by an authenticator was absent.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials means a credential was present but rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials means a token was well formed but expired.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Credentials are what a client presented to identify itself.
type Credentials struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// Empty reports whether nothing was presented.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.Username == ""
}

// Authenticator resolves credentials to an identity.
type Authenticator interface {
	// Authenticate returns the identity or one of the package errors.
	Authenticate(ctx context.Context, creds Credentials) (string, error)

	// Name identifies the authenticator in logs.
	Name() string
}

// CredentialsFromRequest extracts handshake credentials from headers and query.
func CredentialsFromRequest(r *http.Request) Credentials {
	var creds Credentials

	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			creds.Token = strings.TrimSpace(token)
		}
	}

	query := r.URL.Query()
	if creds.Token == "" {
		creds.Token = query.Get("token")
	}
	if creds.Token == "" {
		creds.Token = query.Get("access_token")
	}
	creds.Username = query.Get("username")

	return creds
}
