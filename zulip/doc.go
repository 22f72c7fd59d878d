// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package zulip is a typed client for the Zulip group-chat HTTP API.
//
// [Client] authenticates every request with HTTP basic auth (account
// email and API key, the key held in mmap-backed secret.Buffer memory)
// and performs exactly one round trip per call. It never retries.
// Stateless operations cover message history ([Client.GetMessages]),
// posting ([Client.PostMessage]), topic muting, and stream management.
//
// The stateful part is the event queue. [Client.RegisterQueue] creates a
// server-side queue filtered by a set of [Narrow] values and returns a
// [Queue] whose cursor starts at the server's last_event_id.
// [Client.Poll] long-polls the queue once and advances the cursor to the
// highest event id the response reported, even when the server rejects
// the poll, so an event id is never handed out twice. The cursor is only
// left alone when no envelope could be read at all. A Queue has no lock:
// drive it from one goroutine. [Pump] is that goroutine when several
// consumers need the same feed, and it is where retry policy lives.
//
// Every response is decoded in two phases. The result discriminator is
// read from an untyped intermediate first; the typed payload is only
// decoded when result is "success", because failure envelopes omit the
// payload fields. Errors come in three kinds, distinguishable with
// errors.As:
//
//   - [*ServerError]: the server answered and said no. Message is the
//     server's msg verbatim.
//   - [*TransportError]: the round trip did not complete.
//   - [*ProtocolError]: the server answered with something that is not a
//     valid envelope for the operation.
//
// All server-assigned ids (message, event, stream) are int64.
package zulip
