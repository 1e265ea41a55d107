// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package auth

import "fmt"

// AuthMode selects which credentials the gateway accepts.
type AuthMode string

const (
	AuthModeJWT      AuthMode = "jwt"
	AuthModeUsername AuthMode = "username"
	AuthModeMulti    AuthMode = "multi"
)

// NewAuthenticator builds the authenticator for mode. manager may be nil in
// username mode.
func NewAuthenticator(mode AuthMode, manager *JWTManager) (Authenticator, error) {
	switch mode {
	case AuthModeJWT:
		if manager == nil {
			return nil, fmt.Errorf("auth mode %q requires a JWT manager", mode)
		}
		return NewJWTAuthenticator(manager), nil
	case AuthModeUsername:
		return NewUsernameAuthenticator(), nil
	case AuthModeMulti:
		if manager == nil {
			return nil, fmt.Errorf("auth mode %q requires a JWT manager", mode)
		}
		return NewMultiAuthenticator(NewJWTAuthenticator(manager), NewUsernameAuthenticator()), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
