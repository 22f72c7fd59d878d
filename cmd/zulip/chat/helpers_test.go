// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
)

const testEmail = "bot@example.com"

// fakeServer starts handler and returns a settings file pointing at it.
func fakeServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return writeSettings(t, server.URL, "")
}

func writeSettings(t *testing.T, site, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("site: %s\nemail: %s\napi_key: test-key\n%s", site, testEmail, extra)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
	return path
}

// execute runs command with args and returns what it printed.
func execute(t *testing.T, command *cli.Command, args ...string) (string, error) {
	t.Helper()
	var output bytes.Buffer
	previous := cli.Stdout
	cli.Stdout = &output
	defer func() { cli.Stdout = previous }()
	err := command.Execute(args)
	return output.String(), err
}

// withStdin replaces the stdin commands read "-" from.
func withStdin(t *testing.T, content string) {
	t.Helper()
	previous := stdin
	stdin = strings.NewReader(content)
	t.Cleanup(func() { stdin = previous })
}

func writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(value)
}

func success(fields map[string]any) map[string]any {
	body := map[string]any{"result": "success", "msg": ""}
	for key, value := range fields {
		body[key] = value
	}
	return body
}

func rejection(code, message string) map[string]any {
	return map[string]any{"result": "error", "msg": message, "code": code}
}

// readForm parses an urlencoded body, DELETE included.
func readForm(t *testing.T, request *http.Request) url.Values {
	t.Helper()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		t.Errorf("reading request body: %v", err)
		return nil
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		t.Errorf("parsing form: %v", err)
	}
	return form
}

func wireMessage(id int64, content string) map[string]any {
	return map[string]any{
		"id":                id,
		"content":           content,
		"sender_email":      "alice@example.com",
		"sender_full_name":  "Alice",
		"subject":           "greetings",
		"type":              "stream",
		"display_recipient": "general",
	}
}
