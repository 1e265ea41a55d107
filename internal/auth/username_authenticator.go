// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package auth

import (
	"context"
	"fmt"

	"github.com/tomtom215/relaychat/internal/validation"
)

// UsernameAuthenticator trusts the username query parameter. It is meant for
// deployments behind an authenticating proxy or for development.
type UsernameAuthenticator struct{}

// NewUsernameAuthenticator returns a UsernameAuthenticator.
func NewUsernameAuthenticator() *UsernameAuthenticator {
	return &UsernameAuthenticator{}
}

// Authenticate implements Authenticator.
func (a *UsernameAuthenticator) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if creds.Username == "" {
		return "", ErrNoCredentials
	}
	if err := validation.ValidateIdentity(creds.Username); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return creds.Username, nil
}

// Name implements Authenticator.
func (a *UsernameAuthenticator) Name() string {
	return "username"
}
