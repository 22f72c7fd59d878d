// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/checkpoint"
)

func TestStateShowAndClear(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "watch.cbor")
	if err := checkpoint.Write(statePath, checkpoint.State{
		Site:        "https://chat.example.com",
		Email:       testEmail,
		Narrow:      "[]",
		QueueID:     "q7",
		LastEventID: 12,
	}); err != nil {
		t.Fatalf("writing checkpoint: %v", err)
	}
	// The path comes from the settings when not given.
	settings := writeSettings(t, "https://chat.example.com", "watch:\n  state_file: "+statePath+"\n")

	output, err := execute(t, Root(), "state", "show", "--config", settings, "--json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var view stateView
	if err := json.Unmarshal([]byte(output), &view); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	if view.QueueID != "q7" || view.LastEventID != 12 || view.Path != statePath {
		t.Errorf("view = %+v", view)
	}

	output, err = execute(t, Root(), "state", "show", "--raw", statePath)
	if err != nil {
		t.Fatalf("show --raw: %v", err)
	}
	if !strings.Contains(output, `"q7"`) {
		t.Errorf("diagnostic output = %q", output)
	}

	if _, err := execute(t, Root(), "state", "clear", statePath); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(statePath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("checkpoint still present: %v", err)
	}
	if _, err := execute(t, Root(), "state", "clear", statePath); err != nil {
		t.Errorf("second clear: %v", err)
	}

	_, err = execute(t, Root(), "state", "show", statePath)
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryNotFound {
		t.Errorf("show after clear err = %v, want not found", err)
	}
}

func TestStateWithoutPath(t *testing.T) {
	settings := writeSettings(t, "https://chat.example.com", "")
	_, err := execute(t, Root(), "state", "show", "--config", settings)
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}
