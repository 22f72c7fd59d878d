// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package checkpoint persists an event queue handle between runs of a
// long-poll consumer, so a restarted `zulip watch` resumes the queue it
// had instead of registering a new one and missing what arrived in
// between.
//
// A checkpoint records the queue id and cursor plus the parameters the
// queue was registered with (site, account, narrow, public-streams
// flag). [Resume] returns the saved state only when those parameters
// still match: a queue registered for a different filter must not be
// reused.
//
// Files are CBOR (lib/codec) and written atomically: temporary file in
// the same directory, fsync, rename, parent directory fsync. Readers
// never see a partial write.
package checkpoint
