// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import "encoding/json"

// Message is a snapshot of one message as the server reported it. The
// client treats it as opaque payload: content is not interpreted.
type Message struct {
	ID             int64  `json:"id"`
	Content        string `json:"content"`
	ContentType    string `json:"content_type"`
	SenderEmail    string `json:"sender_email"`
	SenderID       int64  `json:"sender_id"`
	SenderFullName string `json:"sender_full_name"`
	// StreamID is zero for direct messages.
	StreamID int64 `json:"stream_id,omitempty"`
	// Subject is the topic name.
	Subject   string `json:"subject"`
	Timestamp int64  `json:"timestamp"`

	// Type is "stream" or "private".
	Type string `json:"type,omitempty"`
	// DisplayRecipient is the stream name (a JSON string) for stream
	// messages and a list of participant objects for direct messages.
	DisplayRecipient json.RawMessage `json:"display_recipient,omitempty"`
	// Flags are the requesting user's per-message flags (read, starred,
	// mentioned, ...). On messages delivered through an event queue the
	// server sends flags on the event; Poll copies them here.
	Flags []string `json:"flags,omitempty"`
	// LocalMessageID echoes PostRequest.LocalID when this client posted
	// the message with a QueueID and the message arrived on that queue.
	LocalMessageID string `json:"local_message_id,omitempty"`
}

// Event types delivered through an event queue. The queue registers
// for message events only; the server may still send heartbeats.
const (
	EventTypeMessage   = "message"
	EventTypeHeartbeat = "heartbeat"
)

// Event is one entry in a poll response. Events are consumed once per
// poll and never stored. Older servers omit Type on message events, so
// an event with a Message and no Type is a message event.
type Event struct {
	ID      int64    `json:"id"`
	Type    string   `json:"type,omitempty"`
	Message *Message `json:"message,omitempty"`

	Flags          []string `json:"flags,omitempty"`
	LocalMessageID string   `json:"local_message_id,omitempty"`
}

// Queue is a server-side event queue handle plus the client-held
// cursor. LastEventID starts at the server's last_event_id when the
// queue is registered and never decreases.
//
// A Queue must be driven by at most one Poll at a time. Poll mutates
// LastEventID without synchronization.
type Queue struct {
	ID          string `json:"queue_id"`
	LastEventID int64  `json:"last_event_id"`
}

// MessagesOptions selects a window of message history.
type MessagesOptions struct {
	// Anchor is the message id the window is centered on. When nil the
	// server anchors on the user's first unread message.
	Anchor *int64
	// NumBefore and NumAfter bound the number of messages returned on
	// each side of the anchor.
	NumBefore int
	NumAfter  int
	// Narrows filter the window. Nil means all messages visible to the
	// user.
	Narrows []Narrow
	// RawContent asks for the markdown the sender typed instead of the
	// server's default rendered HTML (sends apply_markdown=false).
	RawContent bool
}

// MessagesResponse is the result of GetMessages.
type MessagesResponse struct {
	Anchor      *int64    `json:"anchor,omitempty"`
	FoundNewest bool      `json:"found_newest"`
	FoundOldest bool      `json:"found_oldest"`
	FoundAnchor bool      `json:"found_anchor"`
	Messages    []Message `json:"messages"`
}

// PostRequest is a message to post to a stream topic.
type PostRequest struct {
	// Stream is the destination stream name.
	Stream string
	// Topic is the destination topic (sent as "subject").
	Topic   string
	Content string

	// QueueID and LocalID let a client with a live event queue match the
	// echoed message event to this post: the event for the new message
	// arrives on QueueID carrying LocalID as its local_message_id. Both
	// must be set for the echo to happen; either may be empty.
	QueueID string
	LocalID string
}

// PostResponse is the result of PostMessage.
type PostResponse struct {
	ID int64 `json:"id"`
}
