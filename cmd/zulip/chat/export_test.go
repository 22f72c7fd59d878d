// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
)

// historyServer serves ids 1..last in pages anchored on the query's
// anchor, inclusive, like the server does.
func historyServer(t *testing.T, last int64) string {
	return fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v1/messages" {
			t.Errorf("unexpected path %s", request.URL.Path)
			return
		}
		query := request.URL.Query()
		if query.Get("num_before") != "0" {
			t.Errorf("num_before = %q", query.Get("num_before"))
		}
		if query.Get("apply_markdown") != "false" {
			t.Errorf("apply_markdown = %q, want the markdown source archived", query.Get("apply_markdown"))
		}
		var anchor, after int64
		json.Unmarshal([]byte(query.Get("anchor")), &anchor)
		json.Unmarshal([]byte(query.Get("num_after")), &after)

		var messages []any
		id := max(anchor, 1)
		for ; id <= last && int64(len(messages)) <= after; id++ {
			messages = append(messages, wireMessage(id, "message body"))
		}
		writeJSON(writer, http.StatusOK, success(map[string]any{
			"messages":     messages,
			"found_newest": id > last,
		}))
	})
}

func TestExportThenVerifyAndCat(t *testing.T) {
	settings := historyServer(t, 5)
	archivePath := filepath.Join(t.TempDir(), "history.zarc")

	output, err := execute(t, Root(), "export", "--config", settings, "--json", "--batch-size", "2", "-o", archivePath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var exported exportResult
	if err := json.Unmarshal([]byte(output), &exported); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	if exported.Messages != 5 || exported.Compression != "zstd" {
		t.Errorf("export result = %+v", exported)
	}

	output, err = execute(t, Root(), "archive", "verify", "--json", "--digest", exported.Digest, archivePath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var summary archiveSummary
	if err := json.Unmarshal([]byte(output), &summary); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	if summary.Messages != 5 || summary.Digest != exported.Digest || summary.Narrow != "[]" {
		t.Errorf("verify summary = %+v", summary)
	}

	output, err = execute(t, Root(), "archive", "cat", "--json", archivePath)
	if err != nil {
		t.Fatalf("cat: %v", err)
	}
	messages := decodeLines(t, output)
	if len(messages) != 5 {
		t.Fatalf("cat printed %d messages", len(messages))
	}
	for index, message := range messages {
		if message.ID != int64(index+1) {
			t.Errorf("message %d has id %d", index, message.ID)
		}
	}
}

func TestExportLimit(t *testing.T) {
	settings := historyServer(t, 50)
	archivePath := filepath.Join(t.TempDir(), "head.zarc")

	output, err := execute(t, Root(), "export", "--config", settings, "--limit", "3", "--compression", "lz4", "-o", archivePath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(output, "exported 3 messages to ") {
		t.Errorf("output = %q", output)
	}
}

func TestExportRequiresOutput(t *testing.T) {
	_, err := execute(t, Root(), "export")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestArchiveVerifyDetectsTruncation(t *testing.T) {
	settings := historyServer(t, 3)
	archivePath := filepath.Join(t.TempDir(), "history.zarc")
	if _, err := execute(t, Root(), "export", "--config", settings, "-o", archivePath); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archivePath, data[:len(data)-4], 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := execute(t, Root(), "archive", "verify", archivePath)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("err = %v, want exit code 1", err)
	}
	if !strings.Contains(output, "damaged") {
		t.Errorf("output = %q", output)
	}
}

func TestArchiveMissingFile(t *testing.T) {
	_, err := execute(t, Root(), "archive", "cat", filepath.Join(t.TempDir(), "absent.zarc"))
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}
