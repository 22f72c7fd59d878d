// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// maxKeySize bounds how much ReadFrom will consume. API keys are 32
// characters; anything near this limit is the wrong file.
const maxKeySize = 4096

// ReadFromPath reads a secret from a file, or from stdin if path is
// "-". See ReadFrom.
func ReadFromPath(path string) (*Buffer, error) {
	if path == "-" {
		return ReadFrom(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadFrom(file)
}

// ReadFrom reads the first line of reader into a Buffer, trimming
// surrounding whitespace. The intermediate heap copy is zeroed. An
// empty secret is an error.
func ReadFrom(reader io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxKeySize))
	defer Zero(data)
	if err != nil {
		return nil, fmt.Errorf("secret: reading: %w", err)
	}

	line := data
	if index := bytes.IndexByte(line, '\n'); index >= 0 {
		line = line[:index]
	}
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: input is empty")
	}
	return NewFromBytes(trimmed)
}
