// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/zulip/lib/codec"
)

// Reader reads records back from an archive. It is not safe for
// concurrent use.
type Reader struct {
	input  *bufio.Reader
	header Header

	frame  []byte
	hasher *blake3.Hasher
	count  int64
	digest Digest
	done   bool
}

// NewReader reads and checks the magic and header.
func NewReader(input io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(input)

	prefix := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(buffered, prefix); err != nil {
		return nil, corrupt("reading archive header", err)
	}
	if string(prefix[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: not an archive (bad magic)", ErrCorrupt)
	}
	size := binary.BigEndian.Uint32(prefix[len(magic):])
	if size > maxFrameSize {
		return nil, fmt.Errorf("%w: header of %d bytes", ErrCorrupt, size)
	}
	encoded := make([]byte, size)
	if _, err := io.ReadFull(buffered, encoded); err != nil {
		return nil, corrupt("reading archive header", err)
	}

	var header Header
	if err := codec.Unmarshal(encoded, &header); err != nil {
		return nil, fmt.Errorf("%w: decoding header: %v", ErrCorrupt, err)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("archive: unsupported version %d (this build reads %d)", header.Version, Version)
	}

	return &Reader{input: buffered, header: header, hasher: newDigester()}, nil
}

// Header returns the archive header.
func (r *Reader) Header() Header {
	return r.header
}

// Next decodes the next record into v. At the end of the archive it
// verifies the trailer and returns io.EOF; any mismatch is an error
// wrapping ErrCorrupt instead.
func (r *Reader) Next(v any) error {
	for len(r.frame) == 0 {
		if r.done {
			return io.EOF
		}
		if err := r.readFrame(); err != nil {
			return err
		}
	}

	end := bytes.IndexByte(r.frame, '\n')
	if end < 0 {
		return fmt.Errorf("%w: frame ends mid-record", ErrCorrupt)
	}
	line := r.frame[:end]
	r.frame = r.frame[end+1:]
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: record %d: %v", ErrCorrupt, r.count, err)
	}
	r.count++
	return nil
}

// Count returns the number of records read so far.
func (r *Reader) Count() int64 {
	return r.count
}

// Digest returns the verified digest. It is zero until Next has
// returned io.EOF.
func (r *Reader) Digest() Digest {
	return r.digest
}

func (r *Reader) readFrame() error {
	tag, err := r.input.ReadByte()
	if err != nil {
		return corrupt("reading frame", err)
	}
	if tag == trailerTag {
		return r.readTrailer()
	}

	rawSize, err := binary.ReadUvarint(r.input)
	if err != nil {
		return corrupt("reading frame size", err)
	}
	storedSize, err := binary.ReadUvarint(r.input)
	if err != nil {
		return corrupt("reading frame size", err)
	}
	if rawSize > maxFrameSize || storedSize > maxFrameSize {
		return fmt.Errorf("%w: frame of %d/%d bytes", ErrCorrupt, rawSize, storedSize)
	}
	stored := make([]byte, storedSize)
	if _, err := io.ReadFull(r.input, stored); err != nil {
		return corrupt("reading frame", err)
	}
	raw, err := decompressFrame(stored, Compression(tag), int(rawSize))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	r.hasher.Write(raw)
	r.frame = raw
	return nil
}

func (r *Reader) readTrailer() error {
	count, err := binary.ReadUvarint(r.input)
	if err != nil {
		return corrupt("reading trailer", err)
	}
	var recorded Digest
	if _, err := io.ReadFull(r.input, recorded[:]); err != nil {
		return corrupt("reading trailer", err)
	}
	if int64(count) != r.count {
		return fmt.Errorf("%w: trailer counts %d records, archive holds %d", ErrCorrupt, count, r.count)
	}
	computed := sum(r.hasher)
	if computed != recorded {
		return fmt.Errorf("%w: digest mismatch (recorded %s, computed %s)", ErrCorrupt, recorded, computed)
	}
	r.digest = computed
	r.done = true
	return nil
}

// corrupt maps a premature end of input to ErrCorrupt and passes other
// I/O errors through.
func corrupt(context string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated while %s", ErrCorrupt, context)
	}
	return fmt.Errorf("archive: %s: %w", context, err)
}
