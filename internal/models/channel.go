// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package models

// Channel names a relay bus partition.
type Channel string

const (
	ChannelRoom     Channel = "room_messages"
	ChannelPrivate  Channel = "private_messages"
	ChannelPresence Channel = "user_activity"
)

// Channels returns the fixed set of channels every process subscribes to.
func Channels() []Channel {
	return []Channel{ChannelRoom, ChannelPrivate, ChannelPresence}
}

// String returns the channel name as used on the bus.
func (c Channel) String() string {
	return string(c)
}

// ChannelFor selects the relay channel for a message: presence events go to
// user_activity, direct chat to private_messages, room chat to room_messages.
func ChannelFor(m *ChatMessage) Channel {
	if m.Kind.IsPresence() {
		return ChannelPresence
	}
	if m.RecipientKind() == RecipientDirect {
		return ChannelPrivate
	}
	return ChannelRoom
}
