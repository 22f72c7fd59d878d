// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds an API key or identity in an anonymous mmap region
// outside the Go heap. The region is mlocked, excluded from core dumps
// and zeroed on Close.
//
// Formatting a Buffer with fmt never prints its contents; call Reveal
// for that. A Buffer must not be copied. Reading after Close panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// New allocates a zero-filled buffer of size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}
	data, err := lockedRegion(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{data: data}, nil
}

func lockedRegion(size int) ([]byte, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise: %w", err)
	}
	return data, nil
}

// NewFromBytes moves source into a new buffer: source is zeroed.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errors.New("secret: empty value")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// NewFromString copies value, which was already on the heap (an
// environment variable or a config field), into a new buffer.
func NewFromString(value string) (*Buffer, error) {
	if value == "" {
		return nil, errors.New("secret: empty value")
	}
	buffer, err := New(len(value))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, value)
	return buffer, nil
}

// open returns the protected bytes with b.mu held. The caller unlocks.
func (b *Buffer) open() []byte {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		panic("secret: read from closed buffer")
	}
	return b.data
}

// Bytes aliases the protected region. Do not keep it past Close.
func (b *Buffer) Bytes() []byte {
	data := b.open()
	b.mu.Unlock()
	return data
}

// Reveal returns a heap copy of the secret for APIs that only take a
// string, like http.Request.SetBasicAuth.
func (b *Buffer) Reveal() string {
	data := b.open()
	defer b.mu.Unlock()
	return string(data)
}

// Equal compares against value in constant time.
func (b *Buffer) Equal(value []byte) bool {
	data := b.open()
	defer b.mu.Unlock()
	return subtle.ConstantTimeCompare(data, value) == 1
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// String is redacted so a Buffer in a log line or %v leaks nothing.
func (b *Buffer) String() string {
	return fmt.Sprintf("[redacted %d bytes]", b.Len())
}

// GoString keeps %#v redacted too.
func (b *Buffer) GoString() string {
	return b.String()
}

// Close zeros and releases the region. It is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.data)
	err := errors.Join(unix.Munlock(b.data), unix.Munmap(b.data))
	b.data = nil
	if err != nil {
		return fmt.Errorf("secret: release: %w", err)
	}
	return nil
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
