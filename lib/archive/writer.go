// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/zulip/lib/codec"
)

// Writer appends JSON records to an archive. It is not safe for
// concurrent use.
type Writer struct {
	output      io.Writer
	compression Compression
	frameSize   int

	pending bytes.Buffer
	hasher  *blake3.Hasher
	count   int64

	// err is sticky: after any failure every call returns it.
	err    error
	closed bool
}

// NewWriter writes the magic and header to output and returns a Writer
// for the records. header.Version is set, and CreatedAt defaults to
// now. Close must be called to write the trailer; an archive without
// one is rejected by Reader.
func NewWriter(output io.Writer, header Header) (*Writer, error) {
	if _, _, err := compressFrame(nil, header.Compression); err != nil {
		return nil, err
	}
	header.Version = Version
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now()
	}

	encoded, err := codec.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding archive header: %w", err)
	}
	prefix := make([]byte, 0, len(magic)+4+len(encoded))
	prefix = append(prefix, magic...)
	prefix = binary.BigEndian.AppendUint32(prefix, uint32(len(encoded)))
	prefix = append(prefix, encoded...)
	if _, err := output.Write(prefix); err != nil {
		return nil, fmt.Errorf("writing archive header: %w", err)
	}

	return &Writer{
		output:      output,
		compression: header.Compression,
		frameSize:   DefaultFrameSize,
		hasher:      newDigester(),
	}, nil
}

// Write appends record, JSON-encoded on its own line.
func (w *Writer) Write(record any) error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return fmt.Errorf("archive: write after close")
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: encoding record %d: %w", w.count, err)
	}
	line = append(line, '\n')
	w.hasher.Write(line)
	w.pending.Write(line)
	w.count++

	if w.pending.Len() >= w.frameSize {
		return w.flush()
	}
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int64 {
	return w.count
}

func (w *Writer) flush() error {
	if w.pending.Len() == 0 {
		return nil
	}
	raw := w.pending.Bytes()
	stored, tag, err := compressFrame(raw, w.compression)
	if err != nil {
		w.err = fmt.Errorf("archive: compressing frame: %w", err)
		return w.err
	}

	frame := make([]byte, 0, 1+2*binary.MaxVarintLen64+len(stored))
	frame = append(frame, byte(tag))
	frame = binary.AppendUvarint(frame, uint64(len(raw)))
	frame = binary.AppendUvarint(frame, uint64(len(stored)))
	frame = append(frame, stored...)
	if _, err := w.output.Write(frame); err != nil {
		w.err = fmt.Errorf("archive: writing frame: %w", err)
		return w.err
	}
	w.pending.Reset()
	return nil
}

// Close flushes the last frame and writes the trailer. It does not
// close the underlying writer. It returns the archive digest.
func (w *Writer) Close() (Digest, error) {
	if w.err != nil {
		return Digest{}, w.err
	}
	if w.closed {
		return sum(w.hasher), nil
	}
	if err := w.flush(); err != nil {
		return Digest{}, err
	}
	w.closed = true

	digest := sum(w.hasher)
	trailer := make([]byte, 0, 1+binary.MaxVarintLen64+len(digest))
	trailer = append(trailer, trailerTag)
	trailer = binary.AppendUvarint(trailer, uint64(w.count))
	trailer = append(trailer, digest[:]...)
	if _, err := w.output.Write(trailer); err != nil {
		w.err = fmt.Errorf("archive: writing trailer: %w", err)
		return Digest{}, w.err
	}
	return digest, nil
}
