// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

/*
Package websocket implements the connection gateway and the local dispatcher.

# Gateway

Gateway is the http.Handler mounted at /ws. It authenticates before the
handshake completes when credentials are present in the request (header or
query) and answers 401 without upgrading when they are invalid. Without
credentials the connection is upgraded in PENDING state and must send a
CONNECT frame within the auth timeout.

Connection states:

	PENDING -> AUTHENTICATED -> OPEN -> CLOSED
	PENDING -> CLOSED
	AUTHENTICATED -> CLOSED

The identity bound on AUTHENTICATED never changes for the connection.

# Frames

Every frame is a JSON object:

	{"command":"SUBSCRIBE","destination":"topic/room/R1","id":"sub-0"}
	{"command":"SEND","destination":"app/chat.sendMessage","body":{"roomId":"R1","content":"hi"}}
	{"command":"MESSAGE","destination":"topic/room/R1","body":{"sender":"alice",...}}

SEND frames are routed by destination through an explicit table filled with
Gateway.Handle before serving.

# Dispatcher

Dispatcher owns the topic -> subscriber table of this process. DeliverToTopic
encodes the MESSAGE frame once and enqueues it to every subscriber without
blocking; a subscriber whose buffer is full is disconnected as a slow consumer.
*/
package websocket
