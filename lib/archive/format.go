// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"time"
)

// Version is the archive format version written by Writer.
const Version = 1

const magic = "ZLPARC1\n"

// DefaultFrameSize is the uncompressed size at which Writer cuts a
// frame.
const DefaultFrameSize = 256 << 10

// maxFrameSize bounds frame and header sizes read from untrusted
// input.
const maxFrameSize = 64 << 20

// ErrCorrupt is wrapped by every Reader error that indicates damaged
// or truncated input rather than an I/O failure.
var ErrCorrupt = errors.New("archive: corrupt")

// Header describes an archive. It is CBOR-encoded after the magic.
type Header struct {
	Version     int         `cbor:"1,keyasint"`
	Compression Compression `cbor:"2,keyasint"`

	// Site and Narrow record what was exported: the server and the
	// encoded narrow list of the history query.
	Site   string `cbor:"3,keyasint,omitempty"`
	Narrow string `cbor:"4,keyasint,omitempty"`

	CreatedAt time.Time `cbor:"5,keyasint"`
}
