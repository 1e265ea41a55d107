// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package auth validates the credentials presented on a WebSocket handshake
or in a CONNECT frame and resolves them to an identity.

Credential sources, in order of precedence:

  - Authorization: Bearer <jwt> header
  - ?token=<jwt> or ?access_token=<jwt> query parameter (browsers cannot set
    headers on WebSocket handshakes)
  - ?username=<identity> query parameter for simplified deployments

Authenticators:

  - JWTAuthenticator: HS256 tokens issued by JWTManager; the identity is the
    token subject
  - UsernameAuthenticator: trusts a validated username
  - MultiAuthenticator: tries authenticators in order; a credential that is
    present but invalid stops the chain (fail closed)

Every authenticator returns ErrNoCredentials when the credential it handles is
absent, so callers can distinguish "nothing presented" from "rejected".
*/
package auth
