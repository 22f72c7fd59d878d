// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

type record struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func sampleRecords(n int) []record {
	records := make([]record, n)
	for i := range records {
		records[i] = record{
			ID:      int64(1000 + i),
			Subject: "standup",
			Content: fmt.Sprintf("status update %d: deploy of build %d finished without errors", i, i*7),
		}
	}
	return records
}

// writeArchive writes records with a small frame size so that the
// archive spans several frames.
func writeArchive(t *testing.T, compression Compression, records []record) ([]byte, Digest) {
	t.Helper()
	var buffer bytes.Buffer
	writer, err := NewWriter(&buffer, Header{
		Compression: compression,
		Site:        "https://chat.example.com",
		Narrow:      `[{"operator":"stream","operand":"ops","negated":false}]`,
		CreatedAt:   time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	writer.frameSize = 512
	for _, r := range records {
		if err := writer.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	digest, err := writer.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if writer.Count() != int64(len(records)) {
		t.Errorf("Count = %d, want %d", writer.Count(), len(records))
	}
	return buffer.Bytes(), digest
}

func readAll(data []byte) ([]record, *Reader, error) {
	reader, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	var records []record
	for {
		var r record
		err := reader.Next(&r)
		if errors.Is(err, io.EOF) {
			return records, reader, nil
		}
		if err != nil {
			return records, reader, err
		}
		records = append(records, r)
	}
}

func TestRoundTrip(t *testing.T) {
	records := sampleRecords(100)
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			data, digest := writeArchive(t, compression, records)

			got, reader, err := readAll(data)
			if err != nil {
				t.Fatalf("reading archive: %v", err)
			}
			if len(got) != len(records) {
				t.Fatalf("read %d records, want %d", len(got), len(records))
			}
			for i := range records {
				if got[i] != records[i] {
					t.Fatalf("record %d = %+v, want %+v", i, got[i], records[i])
				}
			}
			if reader.Digest() != digest {
				t.Errorf("reader digest %s, writer digest %s", reader.Digest(), digest)
			}
			header := reader.Header()
			if header.Version != Version || header.Compression != compression || header.Site != "https://chat.example.com" {
				t.Errorf("header = %+v", header)
			}
			if !header.CreatedAt.Equal(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)) {
				t.Errorf("CreatedAt = %v", header.CreatedAt)
			}

			// Next keeps returning io.EOF.
			var extra record
			if err := reader.Next(&extra); !errors.Is(err, io.EOF) {
				t.Errorf("Next after end = %v, want io.EOF", err)
			}
		})
	}
}

func TestDigestIndependentOfCompression(t *testing.T) {
	records := sampleRecords(40)
	_, none := writeArchive(t, CompressionNone, records)
	_, zstd := writeArchive(t, CompressionZstd, records)
	_, lz4 := writeArchive(t, CompressionLZ4, records)
	if none != zstd || none != lz4 {
		t.Errorf("digests differ across compression: %s %s %s", none, zstd, lz4)
	}

	parsed, err := ParseDigest(none.String())
	if err != nil || parsed != none {
		t.Errorf("ParseDigest(String()) = (%s, %v)", parsed, err)
	}
}

func TestCompressionShrinksJSON(t *testing.T) {
	records := sampleRecords(200)
	plain, _ := writeArchive(t, CompressionNone, records)
	compressed, _ := writeArchive(t, CompressionZstd, records)
	if len(compressed) >= len(plain) {
		t.Errorf("zstd archive is %d bytes, uncompressed is %d", len(compressed), len(plain))
	}
}

func TestEmptyArchive(t *testing.T) {
	data, _ := writeArchive(t, CompressionZstd, nil)
	got, reader, err := readAll(data)
	if err != nil {
		t.Fatalf("reading empty archive: %v", err)
	}
	if len(got) != 0 || reader.Count() != 0 {
		t.Errorf("empty archive yielded %d records", len(got))
	}
}

func TestReaderDetectsCorruption(t *testing.T) {
	records := sampleRecords(30)
	data, _ := writeArchive(t, CompressionNone, records)

	t.Run("flipped content byte", func(t *testing.T) {
		damaged := bytes.Clone(data)
		index := bytes.Index(damaged, []byte("status update 17"))
		if index < 0 {
			t.Fatal("record text not found in uncompressed archive")
		}
		damaged[index] = 'S'
		if _, _, err := readAll(damaged); !errors.Is(err, ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		for _, cut := range []int{len(data) - 1, len(data) - 40, len(data) / 2, len(magic) + 2} {
			if _, _, err := readAll(data[:cut]); !errors.Is(err, ErrCorrupt) {
				t.Errorf("truncated at %d: expected ErrCorrupt, got %v", cut, err)
			}
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		damaged := bytes.Clone(data)
		damaged[0] = 'X'
		if _, err := NewReader(bytes.NewReader(damaged)); !errors.Is(err, ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("missing trailer", func(t *testing.T) {
		var buffer bytes.Buffer
		writer, err := NewWriter(&buffer, Header{Compression: CompressionZstd})
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range records {
			writer.Write(r)
		}
		// Flush frames without the trailer, as if the exporter crashed.
		if err := writer.flush(); err != nil {
			t.Fatal(err)
		}
		if _, _, err := readAll(buffer.Bytes()); !errors.Is(err, ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})
}

func TestWriterErrors(t *testing.T) {
	if _, err := NewWriter(io.Discard, Header{Compression: Compression(9)}); err == nil {
		t.Error("NewWriter accepted an unknown compression")
	}

	writer, err := NewWriter(io.Discard, Header{Compression: CompressionZstd})
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Write(func() {}); err == nil {
		t.Error("Write accepted a record that cannot be JSON-encoded")
	}
	if _, err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := writer.Write(record{ID: 1}); err == nil || !strings.Contains(err.Error(), "after close") {
		t.Errorf("Write after Close = %v", err)
	}
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompression(c.String())
		if err != nil || parsed != c {
			t.Errorf("ParseCompression(%q) = (%v, %v)", c.String(), parsed, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) succeeded")
	}
}
