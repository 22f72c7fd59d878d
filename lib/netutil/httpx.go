// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides the HTTP plumbing shared by the API client
// and the command-line tools.
//
// [ReadResponse] bounds every response body read at [MaxResponseSize]
// so that a misbehaving server or proxy cannot exhaust memory. It is
// meant for JSON API responses, which are small; large downloads should
// be streamed with io.Copy instead.
//
// [NewHTTPClient] builds the default client: a cloned default transport
// wrapped with gzhttp so compressed responses are requested and
// decoded transparently, and no client-wide timeout, because event
// queue polls are held open by the server for up to a minute.
// Deadlines come from the request context.
package netutil

import (
	"io"
)

// MaxResponseSize is the bound on JSON API response body reads: 64 MB.
// A history fetch of the server's maximum window is a few megabytes; the
// limit only exists to stop a pathological response.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
