// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests that consume pump subscriptions never hang and never
// call time.After themselves. They are the only place tests use a real
// wall-clock timeout; everything else runs on a fake clock.
//
// Helpers call t.Fatalf on failure instead of returning errors.
package testutil
