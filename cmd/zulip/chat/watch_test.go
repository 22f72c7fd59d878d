// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/zulip/lib/checkpoint"
	"github.com/bureau-foundation/zulip/zulip"
)

// queueServer scripts register and events. Each queue answers its first
// poll with its scripted events; later polls park until the client
// goes away, like an idle long poll. Once expired is set, q1 is
// reported as gone.
type queueServer struct {
	t *testing.T

	mu            sync.Mutex
	registrations int
	served        map[string]bool
	expired       bool
	deleted       []string
}

func (s *queueServer) handle(writer http.ResponseWriter, request *http.Request) {
	switch {
	case request.URL.Path == "/api/v1/register":
		form := readForm(s.t, request)
		if want := `[{"operator":"stream","operand":"ops","negated":false}]`; form.Get("narrow") != want {
			s.t.Errorf("register narrow = %q", form.Get("narrow"))
		}
		s.mu.Lock()
		s.registrations++
		count := s.registrations
		s.mu.Unlock()
		if count == 1 {
			writeJSON(writer, http.StatusOK, success(map[string]any{"queue_id": "q1", "last_event_id": -1}))
		} else {
			writeJSON(writer, http.StatusOK, success(map[string]any{"queue_id": "q2", "last_event_id": 5}))
		}

	case request.URL.Path == "/api/v1/events" && request.Method == http.MethodGet:
		queueID := request.URL.Query().Get("queue_id")
		s.mu.Lock()
		first := !s.served[queueID]
		s.served[queueID] = true
		expired := s.expired
		s.mu.Unlock()

		switch {
		case queueID == "q1" && expired:
			writeJSON(writer, http.StatusBadRequest, rejection("BAD_EVENT_QUEUE_ID", "Bad event queue id: q1"))
		case queueID == "q1" && first:
			writeJSON(writer, http.StatusOK, success(map[string]any{"events": []any{
				map[string]any{"id": 0, "type": "message", "message": wireMessage(100, "first")},
			}}))
		case queueID == "q2" && first:
			writeJSON(writer, http.StatusOK, success(map[string]any{"events": []any{
				map[string]any{"id": 6, "type": "heartbeat"},
				map[string]any{"id": 7, "type": "message", "message": wireMessage(101, "second")},
			}}))
		default:
			<-request.Context().Done()
		}

	case request.URL.Path == "/api/v1/events" && request.Method == http.MethodDelete:
		form := readForm(s.t, request)
		s.mu.Lock()
		s.deleted = append(s.deleted, form.Get("queue_id"))
		s.mu.Unlock()
		writeJSON(writer, http.StatusOK, success(nil))

	default:
		s.t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
	}
}

func decodeLines(t *testing.T, output string) []zulip.Message {
	t.Helper()
	var messages []zulip.Message
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		var message zulip.Message
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			t.Fatalf("decoding line %q: %v", line, err)
		}
		messages = append(messages, message)
	}
	return messages
}

func TestWatchResumesAndReregisters(t *testing.T) {
	server := &queueServer{t: t, served: make(map[string]bool)}
	settings := fakeServer(t, server.handle)
	statePath := filepath.Join(t.TempDir(), "watch.cbor")

	output, err := execute(t, Root(), "watch", "--config", settings, "--json", "--count", "1", "--state", statePath, "-n", "stream:ops")
	if err != nil {
		t.Fatalf("first watch: %v", err)
	}
	if messages := decodeLines(t, output); len(messages) != 1 || messages[0].ID != 100 {
		t.Fatalf("first watch printed %+v", messages)
	}
	state, err := checkpoint.Read(statePath)
	if err != nil {
		t.Fatalf("reading checkpoint: %v", err)
	}
	if state.QueueID != "q1" || state.LastEventID != 0 || state.Email != testEmail {
		t.Errorf("checkpoint after first watch = %+v", state)
	}

	// The second run resumes q1 without registering, finds it expired,
	// and continues on a replacement.
	server.mu.Lock()
	server.expired = true
	server.mu.Unlock()
	output, err = execute(t, Root(), "watch", "--config", settings, "--json", "--count", "1", "--state", statePath, "-n", "stream:ops")
	if err != nil {
		t.Fatalf("second watch: %v", err)
	}
	if messages := decodeLines(t, output); len(messages) != 1 || messages[0].ID != 101 {
		t.Fatalf("second watch printed %+v", messages)
	}
	state, err = checkpoint.Read(statePath)
	if err != nil {
		t.Fatalf("reading checkpoint: %v", err)
	}
	if state.QueueID != "q2" || state.LastEventID != 7 {
		t.Errorf("checkpoint after re-registration = %+v", state)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if server.registrations != 2 {
		t.Errorf("registrations = %d, want 2", server.registrations)
	}
	if len(server.deleted) != 0 {
		t.Errorf("checkpointed queues were deleted: %v", server.deleted)
	}
}

func TestWatchWithoutStateDeletesQueue(t *testing.T) {
	server := &queueServer{t: t, served: make(map[string]bool)}
	settings := fakeServer(t, server.handle)

	output, err := execute(t, Root(), "watch", "--config", settings, "--count", "1", "-n", "stream:ops")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if output != "Alice · #general > greetings\n  first\n" {
		t.Errorf("output = %q", output)
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.deleted) != 1 || server.deleted[0] != "q1" {
		t.Errorf("deleted = %v, want [q1]", server.deleted)
	}
}

func TestWatchRejectedPollIsAnError(t *testing.T) {
	settings := fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/api/v1/register":
			writeJSON(writer, http.StatusOK, success(map[string]any{"queue_id": "q1", "last_event_id": -1}))
		case "/api/v1/events":
			if request.Method == http.MethodGet {
				writeJSON(writer, http.StatusUnauthorized, rejection("UNAUTHORIZED", "Invalid API key"))
				return
			}
			writeJSON(writer, http.StatusOK, success(nil))
		}
	})

	_, err := execute(t, Root(), "watch", "--config", settings)
	if err == nil || !strings.Contains(err.Error(), "Invalid API key") {
		t.Fatalf("err = %v, want the server's rejection", err)
	}
}

func TestWatchCountStopsMidBatchWithoutSkipping(t *testing.T) {
	var mu sync.Mutex
	registrations := 0
	settings := fakeServer(t, func(writer http.ResponseWriter, request *http.Request) {
		switch {
		case request.URL.Path == "/api/v1/register":
			mu.Lock()
			registrations++
			mu.Unlock()
			writeJSON(writer, http.StatusOK, success(map[string]any{"queue_id": "q1", "last_event_id": -1}))
		case request.URL.Path == "/api/v1/events" && request.Method == http.MethodGet:
			if request.URL.Query().Get("last_event_id") != "-1" {
				<-request.Context().Done()
				return
			}
			writeJSON(writer, http.StatusOK, success(map[string]any{"events": []any{
				map[string]any{"id": 0, "type": "message", "message": wireMessage(200, "one")},
				map[string]any{"id": 1, "type": "message", "message": wireMessage(201, "two")},
				map[string]any{"id": 2, "type": "message", "message": wireMessage(202, "three")},
			}}))
		default:
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
	})
	statePath := filepath.Join(t.TempDir(), "watch.cbor")

	output, err := execute(t, Root(), "watch", "--config", settings, "--json", "--count", "1", "--state", statePath)
	if err != nil {
		t.Fatalf("first watch: %v", err)
	}
	if messages := decodeLines(t, output); len(messages) != 1 || messages[0].ID != 200 {
		t.Fatalf("first watch printed %+v", messages)
	}
	state, err := checkpoint.Read(statePath)
	if err != nil {
		t.Fatalf("reading checkpoint: %v", err)
	}
	if state.LastEventID != -1 {
		t.Errorf("checkpoint cursor = %d after a partly printed batch, want -1", state.LastEventID)
	}

	output, err = execute(t, Root(), "watch", "--config", settings, "--json", "--count", "3", "--state", statePath)
	if err != nil {
		t.Fatalf("second watch: %v", err)
	}
	var ids []int64
	for _, message := range decodeLines(t, output) {
		ids = append(ids, message.ID)
	}
	if len(ids) != 3 || ids[0] != 200 || ids[1] != 201 || ids[2] != 202 {
		t.Errorf("resumed watch printed %v, want [200 201 202]", ids)
	}
	state, err = checkpoint.Read(statePath)
	if err != nil {
		t.Fatalf("reading checkpoint: %v", err)
	}
	if state.QueueID != "q1" || state.LastEventID != 2 {
		t.Errorf("checkpoint after full batch = %+v", state)
	}

	mu.Lock()
	defer mu.Unlock()
	if registrations != 1 {
		t.Errorf("registrations = %d, want 1 (second run resumes)", registrations)
	}
}
