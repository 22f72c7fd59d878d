// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte keyed BLAKE3 hash of an archive's uncompressed
// records.
type Digest [32]byte

// digestKey separates archive digests from any other BLAKE3 use of the
// same bytes: ASCII, zero-padded to 32 bytes.
var digestKey = [32]byte{
	'z', 'u', 'l', 'i', 'p', '.', 'a', 'r', 'c', 'h', 'i', 'v', 'e', '.',
	'r', 'e', 'c', 'o', 'r', 'd', 's', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// String returns the hex form of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses the 64-character hex form of a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing archive digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("archive digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

func newDigester() *blake3.Hasher {
	// NewKeyed only fails for keys that are not 32 bytes.
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("archive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

func sum(hasher *blake3.Hasher) Digest {
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
