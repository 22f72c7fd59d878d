// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps API keys out of swappable, dumpable memory.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into RAM with mlock, and marks it MADV_DONTDUMP. Close zeros
// and unmaps it. The API client holds its key in a Buffer and converts
// it to a string only when setting the Authorization header.
//
// Constructors:
//
//   - [New] allocates a zero-filled buffer
//   - [NewFromBytes] copies into protected memory and zeros the source
//   - [NewFromString] copies from an immutable string
//   - [ReadFromPath] reads a key file (or stdin for "-")
//
// Depends on golang.org/x/sys/unix only.
package secret
