// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package websocket

import (
	"errors"

	"github.com/goccy/go-json"
)

// Command identifies the frame type.
type Command string

// Client to server.
const (
	CommandConnect     Command = "CONNECT"
	CommandSubscribe   Command = "SUBSCRIBE"
	CommandUnsubscribe Command = "UNSUBSCRIBE"
	CommandSend        Command = "SEND"
	CommandPing        Command = "PING"
)

// Server to client.
const (
	CommandConnected Command = "CONNECTED"
	CommandMessage   Command = "MESSAGE"
	CommandError     Command = "ERROR"
	CommandPong      Command = "PONG"
	CommandReceipt   Command = "RECEIPT"
)

// Frame errors surfaced to clients in ERROR frames.
var (
	ErrUnknownDestination = errors.New("no handler for destination")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrNotConnected       = errors.New("connection is not authenticated")
	ErrAlreadyConnected   = errors.New("connection is already authenticated")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrMalformedFrame     = errors.New("malformed frame")
)

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Command     Command         `json:"command"`
	Destination string          `json:"destination,omitempty"`
	ID          string          `json:"id,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// ConnectedBody is the body of a CONNECTED frame.
type ConnectedBody struct {
	Identity     string `json:"identity"`
	ConnectionID string `json:"connectionId"`
}

// ErrorBody is the body of an ERROR frame.
type ErrorBody struct {
	Message     string `json:"message"`
	Destination string `json:"destination,omitempty"`
}

func decodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ErrMalformedFrame
	}
	if f.Command == "" {
		return nil, ErrMalformedFrame
	}
	return &f, nil
}

func encodeFrame(f *Frame) ([]byte, error) {
	return json.Marshal(f)
}

func newFrame(command Command, destination, id string, body interface{}) ([]byte, error) {
	f := &Frame{Command: command, Destination: destination, ID: id}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		f.Body = raw
	}
	return encodeFrame(f)
}

// messageFrame wraps an already encoded payload without re-encoding it.
func messageFrame(destination string, payload []byte) ([]byte, error) {
	return encodeFrame(&Frame{Command: CommandMessage, Destination: destination, Body: payload})
}
