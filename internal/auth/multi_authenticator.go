// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package auth

import (
	"context"
	"errors"

	"github.com/tomtom215/relaychat/internal/logging"
)

// MultiAuthenticator tries authenticators in order.
//
// Only ErrNoCredentials moves on to the next authenticator. Any other
// failure is returned immediately: a bad token must not be rescued by a
// username parameter on the same request.
type MultiAuthenticator struct {
	authenticators []Authenticator
}

// NewMultiAuthenticator chains authenticators in the given order.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{authenticators: authenticators}
}

// Authenticate implements Authenticator.
func (m *MultiAuthenticator) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	for _, a := range m.authenticators {
		identity, err := a.Authenticate(ctx, creds)
		if err == nil {
			return identity, nil
		}
		if errors.Is(err, ErrNoCredentials) {
			continue
		}

		logging.Debug().Str("authenticator", a.Name()).Err(err).Msg("credential rejected")
		return "", err
	}
	return "", ErrNoCredentials
}

// Name implements Authenticator.
func (m *MultiAuthenticator) Name() string {
	return "multi"
}
