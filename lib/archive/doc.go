// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive reads and writes message export archives: a stream
// of JSON records (one per line, JSONL) split into compressed frames
// and sealed with a BLAKE3 digest.
//
// Layout:
//
//	magic    "ZLPARC1\n"
//	header   uint32 big-endian length, then a CBOR [Header]
//	frame*   tag byte, uvarint raw size, uvarint stored size, bytes
//	trailer  0xFF, uvarint record count, 32-byte digest
//
// Each frame's tag says how it is stored (none, lz4 block, zstd).
// Frames that do not shrink are stored uncompressed. The digest is a
// keyed BLAKE3 hash over the uncompressed JSONL, so it is independent
// of the compression chosen. [Reader] verifies the record count and
// digest when it reaches the trailer and returns [ErrCorrupt] on any
// mismatch; a record is only trustworthy once Next has returned
// io.EOF.
//
// `zulip export` writes archives; `zulip export --verify` reads one
// back.
package archive
