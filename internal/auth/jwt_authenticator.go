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

// JWTAuthenticator accepts bearer tokens issued by a JWTManager.
type JWTAuthenticator struct {
	manager *JWTManager
}

// NewJWTAuthenticator wraps manager.
func NewJWTAuthenticator(manager *JWTManager) *JWTAuthenticator {
	return &JWTAuthenticator{manager: manager}
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if creds.Token == "" {
		return "", ErrNoCredentials
	}

	claims, err := a.manager.ValidateToken(creds.Token)
	if err != nil {
		return "", err
	}

	identity := claims.Identity()
	if err := validation.ValidateIdentity(identity); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return identity, nil
}

// Name implements Authenticator.
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}
