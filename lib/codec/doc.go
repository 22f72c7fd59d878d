// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the module's CBOR configuration.
//
// JSON is for the wire (the chat server's HTTP API, CLI --json output,
// narrow files). CBOR is for local binary state: the watch checkpoint
// file and archive headers. Every writer goes through this package so
// the same logical value always produces identical bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Archive headers are length-prefixed, so there is no stream API.
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type is only ever CBOR (checkpoint records,
//     archive headers). Integer keys (`cbor:"1,keyasint"`) keep these
//     compact.
//   - `json` tag: the type is also JSON. fxamacker/cbor reads `json`
//     tags when `cbor` tags are absent, so one tag controls both.
//
// Never put both tags on the same field.
package codec
