// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package models defines the values exchanged between connections, relay
processes, and HTTP clients.

Key Components:

  - ChatMessage: the transport value carried on every relay channel and
    delivered to subscribers inside MESSAGE frames
  - MessageKind: closed set of CHAT, JOIN and LEAVE
  - RecipientKind: DIRECT or ROOM, derived from which target field is set
  - Channel: the three relay bus channels every process subscribes to
  - APIResponse: envelope for the small HTTP surface (health, presence)

Wire format of a ChatMessage:

	{
	  "sender": "alice",
	  "receiver": "bob",
	  "roomId": null,
	  "content": "hi",
	  "type": "CHAT",
	  "sentAt": "2026-01-02T15:04:05.000000001Z"
	}

A JOIN or LEAVE with a null roomId is a global online/offline status event.
*/
package models
