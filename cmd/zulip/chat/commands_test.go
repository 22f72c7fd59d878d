// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
)

func TestSendReadsStdinAndEchoesLocalID(t *testing.T) {
	var form map[string][]string
	settings := fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/api/v1/messages" {
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		form = readForm(t, request)
		writeJSON(writer, http.StatusOK, success(map[string]any{"id": 42}))
	})
	withStdin(t, "rolled out\n")

	output, err := execute(t, Root(), "send", "--config", settings, "--json", "--queue-id", "q1", "ops", "deploys", "-")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var result sendResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	if result.ID != 42 {
		t.Errorf("id = %d, want 42", result.ID)
	}
	if result.LocalID == "" {
		t.Error("no local id generated for --queue-id")
	}
	want := map[string]string{
		"type":     "stream",
		"to":       "ops",
		"subject":  "deploys",
		"content":  "rolled out\n",
		"queue_id": "q1",
		"local_id": result.LocalID,
	}
	for key, value := range want {
		if got := form[key]; len(got) != 1 || got[0] != value {
			t.Errorf("form[%s] = %q, want %q", key, got, value)
		}
	}
}

func TestSendArgumentCount(t *testing.T) {
	_, err := execute(t, Root(), "send", "ops", "deploys")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestMessagesRendersPlainHistory(t *testing.T) {
	settings := fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v1/messages" {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		query := request.URL.Query()
		if query.Get("anchor") != "5" || query.Get("num_before") != "3" || query.Get("num_after") != "0" {
			t.Errorf("window = %v", query)
		}
		if query.Get("apply_markdown") != "false" {
			t.Errorf("apply_markdown = %q", query.Get("apply_markdown"))
		}
		if !strings.Contains(query.Get("narrow"), `"general"`) {
			t.Errorf("narrow = %q", query.Get("narrow"))
		}
		writeJSON(writer, http.StatusOK, success(map[string]any{
			"anchor":       5,
			"found_anchor": true,
			"messages":     []any{wireMessage(4, "hello **world**"), wireMessage(5, "second")},
		}))
	})

	output, err := execute(t, Root(), "messages", "--config", settings, "--anchor", "5", "--before", "3", "-n", "stream:general")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	want := "Alice · #general > greetings\n  hello world\n\nAlice · #general > greetings\n  second\n"
	if output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestMessagesHTMLKeepsServerDefault(t *testing.T) {
	settings := fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Query().Has("apply_markdown") {
			t.Errorf("apply_markdown = %q sent with --html", request.URL.Query().Get("apply_markdown"))
		}
		writeJSON(writer, http.StatusOK, success(map[string]any{
			"messages": []any{wireMessage(4, "<p>hi</p>")},
		}))
	})

	output, err := execute(t, Root(), "messages", "--config", settings, "--html", "--json")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if !strings.Contains(output, `\u003cp\u003ehi`) {
		t.Errorf("output = %q", output)
	}
}

func TestMessagesRejectsBadNarrow(t *testing.T) {
	settings := writeSettings(t, "http://127.0.0.1:1", "")
	_, err := execute(t, Root(), "messages", "--config", settings, "-n", "nonsense")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestMuteAndUnmute(t *testing.T) {
	var ops []string
	settings := fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPatch || request.URL.Path != "/api/v1/users/me/subscriptions/muted_topics" {
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		form := readForm(t, request)
		if form.Get("stream") != "ops" || form.Get("topic") != "noise" {
			t.Errorf("form = %v", form)
		}
		ops = append(ops, form.Get("op"))
		writeJSON(writer, http.StatusOK, success(nil))
	})

	output, err := execute(t, Root(), "mute", "--config", settings, "ops", "noise")
	if err != nil {
		t.Fatalf("mute: %v", err)
	}
	if output != "muted ops > noise\n" {
		t.Errorf("mute output = %q", output)
	}
	if _, err := execute(t, Root(), "unmute", "--config", settings, "ops", "noise"); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if strings.Join(ops, ",") != "add,remove" {
		t.Errorf("ops = %v", ops)
	}
}

func TestStreamCreateAndDeleteByName(t *testing.T) {
	var deleted string
	settings := fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		switch {
		case request.Method == http.MethodPost && request.URL.Path == "/api/v1/users/me/subscriptions":
			form := readForm(t, request)
			if !strings.Contains(form.Get("subscriptions"), `"name":"ops"`) {
				t.Errorf("subscriptions = %q", form.Get("subscriptions"))
			}
			if form.Get("announce") != "true" {
				t.Errorf("announce = %q", form.Get("announce"))
			}
			writeJSON(writer, http.StatusOK, success(nil))
		case request.URL.Path == "/api/v1/get_stream_id":
			if request.URL.Query().Get("stream") != "ops" {
				writeJSON(writer, http.StatusBadRequest, rejection("STREAM_DOES_NOT_EXIST", "no such stream"))
				return
			}
			writeJSON(writer, http.StatusOK, success(map[string]any{"stream_id": 9}))
		case request.Method == http.MethodDelete && strings.HasPrefix(request.URL.Path, "/api/v1/streams/"):
			deleted = strings.TrimPrefix(request.URL.Path, "/api/v1/streams/")
			writeJSON(writer, http.StatusOK, success(nil))
		default:
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
	})

	output, err := execute(t, Root(), "stream", "create", "--config", settings, "--announce", "--json", "ops")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var created streamResult
	if err := json.Unmarshal([]byte(output), &created); err != nil || created.ID != 9 {
		t.Errorf("create output = %q (%v)", output, err)
	}

	if _, err := execute(t, Root(), "stream", "delete", "--config", settings, "ops"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != "9" {
		t.Errorf("deleted stream %q, want 9", deleted)
	}

	_, err = execute(t, Root(), "stream", "id", "--config", settings, "missing")
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != cli.CategoryNotFound {
		t.Errorf("missing stream err = %v, want not found", err)
	}
}

func TestVersionJSON(t *testing.T) {
	output, err := execute(t, Root(), "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var result versionResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	if !strings.HasPrefix(result.UserAgent, "zulip-go/") {
		t.Errorf("user agent = %q", result.UserAgent)
	}
}
