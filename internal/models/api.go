// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package models

import "time"

// APIResponse is the envelope returned by every HTTP endpoint.
//
//	{
//	  "status": "success",
//	  "data": {"identities": ["alice"], "count": 1},
//	  "metadata": {"timestamp": "2026-01-02T15:04:05Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is the error body of a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OnlineIdentities is returned by the presence listing endpoint.
type OnlineIdentities struct {
	Identities []string `json:"identities"`
	Count      int      `json:"count"`
}

// IdentityPresence is returned by the single-identity presence endpoint.
type IdentityPresence struct {
	Identity    string `json:"identity"`
	Online      bool   `json:"online"`
	Connections int    `json:"connections"`
}

// HealthStatus is returned by the readiness endpoint.
type HealthStatus struct {
	Status    string `json:"status"`
	RelayMode string `json:"relay_mode"`
	RelayOK   bool   `json:"relay_healthy"`
	Sessions  int    `json:"sessions"`
}
