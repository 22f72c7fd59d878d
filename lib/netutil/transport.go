// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

// NewHTTPClient returns an *http.Client whose transport negotiates
// compressed responses. The client has no Timeout; bound each request
// with its context.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: NewTransport()}
}

// NewTransport returns a clone of http.DefaultTransport wrapped with
// gzhttp. The wrapper adds Accept-Encoding and decompresses the body
// before the caller sees it, so Content-Length and Content-Encoding are
// stripped from decompressed responses.
func NewTransport() http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	// Long polls keep a connection busy for the whole hold time. Keep
	// enough idle connections per host that a concurrent one-shot call
	// does not force a new handshake every time.
	base.MaxIdleConnsPerHost = 4
	base.IdleConnTimeout = 90 * time.Second
	return gzhttp.Transport(base)
}
