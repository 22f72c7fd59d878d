// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package narrowfile reads saved filters for `zulip watch --narrow-file`
// and `zulip messages --narrow-file`.
//
// A narrow file is JSONC (JSON with // and /* */ comments and trailing
// commas). The document is either a list of narrows or an object with
// a "narrows" list and an optional "all_public_streams" flag. Each
// narrow is either the wire object or the short text form accepted on
// the command line:
//
//	{
//	  // production alerts, minus the bot's own chatter
//	  "all_public_streams": false,
//	  "narrows": [
//	    "stream:ops",
//	    {"operator": "sender", "operand": "alerts-bot@example.com", "negated": true},
//	  ],
//	}
package narrowfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/zulip/zulip"
)

// File is a parsed narrow file.
type File struct {
	AllPublicStreams bool
	Narrows          []zulip.Narrow
}

type document struct {
	AllPublicStreams bool              `json:"all_public_streams"`
	Narrows          []json.RawMessage `json:"narrows"`
}

// Parse strips comments and trailing commas from data, then decodes
// it. Every narrow is validated; the first invalid one fails the whole
// file with its index.
func Parse(data []byte) (*File, error) {
	stripped := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(stripped) == 0 {
		return nil, fmt.Errorf("narrow file is empty")
	}

	var doc document
	if stripped[0] == '[' {
		if err := json.Unmarshal(stripped, &doc.Narrows); err != nil {
			return nil, fmt.Errorf("parsing narrow list: %w", err)
		}
	} else {
		decoder := json.NewDecoder(bytes.NewReader(stripped))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing narrow file: %w", err)
		}
	}

	file := &File{AllPublicStreams: doc.AllPublicStreams, Narrows: make([]zulip.Narrow, 0, len(doc.Narrows))}
	for index, raw := range doc.Narrows {
		narrow, err := parseEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("narrow %d: %w", index, err)
		}
		file.Narrows = append(file.Narrows, narrow)
	}
	return file, nil
}

func parseEntry(raw json.RawMessage) (zulip.Narrow, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return zulip.ParseNarrow(text)
	}
	var narrow zulip.Narrow
	if err := json.Unmarshal(raw, &narrow); err != nil {
		return zulip.Narrow{}, err
	}
	return narrow, nil
}

// ReadFile reads and parses the narrow file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}
