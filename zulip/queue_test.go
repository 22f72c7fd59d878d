// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func messageEvent(id, messageID int64) map[string]any {
	return map[string]any{
		"id":   id,
		"type": "message",
		"message": map[string]any{
			"id":               messageID,
			"content":          fmt.Sprintf("message %d", messageID),
			"content_type":     "text/x-markdown",
			"sender_email":     "alice@example.com",
			"sender_id":        11,
			"sender_full_name": "Alice",
			"stream_id":        3,
			"subject":          "standup",
			"timestamp":        1760000000,
			"type":             "stream",
		},
	}
}

// pollServer answers every events request with the next scripted body.
// Each body is written with its status code; after the script runs out
// the test fails.
type scriptedResponse struct {
	status int
	body   any
}

func pollServer(t *testing.T, script ...scriptedResponse) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/"+eventsPath {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		index := int(calls.Add(1)) - 1
		if index >= len(script) {
			t.Errorf("unexpected poll #%d", index+1)
			writeJSON(writer, http.StatusInternalServerError, rejection("", "script exhausted"))
			return
		}
		step := script[index]
		if raw, ok := step.body.(string); ok {
			writer.WriteHeader(step.status)
			writer.Write([]byte(raw))
			return
		}
		writeJSON(writer, step.status, step.body)
	})
	return client, &calls
}

func TestRegisterQueue(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/api/v1/register" {
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		form := readForm(t, request)
		if got := form.Get("event_types"); got != `["message"]` {
			t.Errorf("event_types = %q", got)
		}
		if got := form.Get("all_public_streams"); got != "true" {
			t.Errorf("all_public_streams = %q", got)
		}
		if got := form.Get("narrow"); got != "[]" {
			t.Errorf("narrow = %q, want []", got)
		}
		if form.Has("narrows") {
			t.Error("filters must be sent as narrow, not narrows")
		}
		writeJSON(writer, http.StatusOK, success(map[string]any{"queue_id": "q1", "last_event_id": 0}))
	})

	queue, err := client.RegisterQueue(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("RegisterQueue: %v", err)
	}
	if queue.ID != "q1" || queue.LastEventID != 0 {
		t.Errorf("queue = %+v, want {q1 0}", queue)
	}
}

func TestRegisterQueueSendsNarrows(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		form := readForm(t, request)
		want := `[{"operator":"stream","operand":"ops","negated":false},{"operator":"sender","operand":"bot@example.com","negated":true}]`
		if got := form.Get("narrow"); got != want {
			t.Errorf("narrow = %s, want %s", got, want)
		}
		if got := form.Get("all_public_streams"); got != "false" {
			t.Errorf("all_public_streams = %q", got)
		}
		writeJSON(writer, http.StatusOK, success(map[string]any{"queue_id": "1517975029:0", "last_event_id": -1}))
	})

	queue, err := client.RegisterQueue(context.Background(), false, []Narrow{
		NarrowStream("ops", false),
		NarrowSender("bot@example.com", true),
	})
	if err != nil {
		t.Fatalf("RegisterQueue: %v", err)
	}
	if queue.LastEventID != -1 {
		t.Errorf("cursor = %d, want the server's last_event_id -1", queue.LastEventID)
	}
}

func TestRegisterQueueFailures(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
			writeJSON(writer, http.StatusBadRequest, rejection(CodeBadRequest, "Invalid narrow operator"))
		})
		_, err := client.RegisterQueue(context.Background(), false, nil)
		var serverErr *ServerError
		if !errors.As(err, &serverErr) || serverErr.Message != "Invalid narrow operator" {
			t.Fatalf("expected ServerError(Invalid narrow operator), got %v", err)
		}
	})

	t.Run("success without queue_id", func(t *testing.T) {
		client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
			writeJSON(writer, http.StatusOK, success(map[string]any{"last_event_id": 0}))
		})
		_, err := client.RegisterQueue(context.Background(), false, nil)
		if !IsProtocolError(err) {
			t.Fatalf("expected ProtocolError, got %v", err)
		}
	})

	t.Run("invalid narrow is not sent", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(writer http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeJSON(writer, http.StatusOK, success(nil))
		})
		if _, err := client.RegisterQueue(context.Background(), false, []Narrow{NarrowIs(IsWord{}, false)}); err == nil {
			t.Fatal("expected error for invalid narrow")
		}
		if calls.Load() != 0 {
			t.Error("request sent despite invalid narrow")
		}
	})
}

func TestPollDeliversMessageAndAdvancesCursor(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", request.Method)
		}
		if got := request.URL.Query().Get("queue_id"); got != "q1" {
			t.Errorf("queue_id = %q", got)
		}
		if got := request.URL.Query().Get("last_event_id"); got != "0" {
			t.Errorf("last_event_id = %q", got)
		}
		writeJSON(writer, http.StatusOK, success(map[string]any{
			"queue_id": "q1",
			"events":   []any{messageEvent(5, 1001)},
		}))
	})

	queue := &Queue{ID: "q1", LastEventID: 0}
	messages, err := client.Poll(context.Background(), queue)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	if messages[0].ID != 1001 || messages[0].Subject != "standup" || messages[0].SenderID != 11 || messages[0].StreamID != 3 {
		t.Errorf("message = %+v", messages[0])
	}
	if queue.LastEventID != 5 {
		t.Errorf("cursor = %d, want 5", queue.LastEventID)
	}
}

func TestPollEmptyBatchIsIdle(t *testing.T) {
	idle := scriptedResponse{http.StatusOK, success(map[string]any{"events": []any{}})}
	client, calls := pollServer(t, idle, idle)

	queue := &Queue{ID: "q1", LastEventID: 5}
	for round := 1; round <= 2; round++ {
		messages, err := client.Poll(context.Background(), queue)
		if err != nil {
			t.Fatalf("round %d: Poll: %v", round, err)
		}
		if messages == nil || len(messages) != 0 {
			t.Errorf("round %d: messages = %#v, want empty non-nil batch", round, messages)
		}
		if queue.LastEventID != 5 {
			t.Errorf("round %d: cursor = %d, want 5", round, queue.LastEventID)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d polls, want 2", calls.Load())
	}
}

func TestPollFailureStillAdvancesCursor(t *testing.T) {
	t.Run("with code", func(t *testing.T) {
		client, _ := pollServer(t, scriptedResponse{http.StatusBadRequest, map[string]any{
			"result":   "error",
			"msg":      "Bad event queue id",
			"code":     CodeBadEventQueueID,
			"queue_id": "q1",
			"events":   []any{messageEvent(6, 1002)},
		}})
		queue := &Queue{ID: "q1", LastEventID: 5}
		messages, err := client.Poll(context.Background(), queue)

		var serverErr *ServerError
		if !errors.As(err, &serverErr) {
			t.Fatalf("expected *ServerError, got %T: %v", err, err)
		}
		if serverErr.Message != "Bad event queue id" {
			t.Errorf("Message = %q", serverErr.Message)
		}
		if !IsQueueExpired(err) {
			t.Error("IsQueueExpired = false")
		}
		if messages != nil {
			t.Errorf("failure returned messages: %+v", messages)
		}
		if queue.LastEventID != 6 {
			t.Errorf("cursor = %d, want 6 despite the failure", queue.LastEventID)
		}
	})

	t.Run("legacy envelope without code", func(t *testing.T) {
		client, _ := pollServer(t, scriptedResponse{http.StatusOK, map[string]any{
			"result": "error",
			"msg":    "Bad event queue id",
			"events": []any{map[string]any{"id": 6}},
		}})
		queue := &Queue{ID: "q1", LastEventID: 5}
		_, err := client.Poll(context.Background(), queue)
		if !IsQueueExpired(err) {
			t.Fatalf("expected queue expiry, got %v", err)
		}
		if queue.LastEventID != 6 {
			t.Errorf("cursor = %d, want 6", queue.LastEventID)
		}
	})

	t.Run("failure without events", func(t *testing.T) {
		client, _ := pollServer(t, scriptedResponse{http.StatusTooManyRequests, rejection(CodeRateLimitHit, "API usage exceeded rate limit")})
		queue := &Queue{ID: "q1", LastEventID: 5}
		_, err := client.Poll(context.Background(), queue)
		if !IsServerError(err, CodeRateLimitHit) {
			t.Fatalf("expected RATE_LIMIT_HIT, got %v", err)
		}
		if queue.LastEventID != 5 {
			t.Errorf("cursor = %d, want 5", queue.LastEventID)
		}
	})
}

func TestPollCursorIsMonotonic(t *testing.T) {
	client, _ := pollServer(t,
		scriptedResponse{http.StatusOK, success(map[string]any{"events": []any{messageEvent(7, 1), messageEvent(6, 2)}})},
		scriptedResponse{http.StatusOK, success(map[string]any{"events": []any{}})},
		scriptedResponse{http.StatusOK, success(map[string]any{"events": []any{messageEvent(4, 3)}})},
		scriptedResponse{http.StatusBadRequest, map[string]any{"result": "error", "msg": "boom", "events": []any{map[string]any{"id": 2}}}},
		scriptedResponse{http.StatusOK, success(map[string]any{"events": []any{messageEvent(9, 4), messageEvent(8, 5)}})},
	)

	queue := &Queue{ID: "q1", LastEventID: 5}
	wantCursors := []int64{7, 7, 7, 7, 9}
	for round, want := range wantCursors {
		before := queue.LastEventID
		messages, err := client.Poll(context.Background(), queue)
		if queue.LastEventID < before {
			t.Fatalf("round %d: cursor regressed from %d to %d", round, before, queue.LastEventID)
		}
		if queue.LastEventID != want {
			t.Errorf("round %d: cursor = %d, want %d (err=%v)", round, queue.LastEventID, want, err)
		}
		if round == 0 {
			// Response order is preserved; the client does not sort.
			if len(messages) != 2 || messages[0].ID != 1 || messages[1].ID != 2 {
				t.Errorf("round 0 messages out of response order: %+v", messages)
			}
		}
	}
}

func TestPollSkipsNonMessageEvents(t *testing.T) {
	client, _ := pollServer(t, scriptedResponse{http.StatusOK, success(map[string]any{
		"events": []any{
			map[string]any{"id": 10, "type": "heartbeat"},
			func() map[string]any {
				event := messageEvent(11, 2001)
				event["flags"] = []string{"mentioned"}
				event["local_message_id"] = "local-1"
				return event
			}(),
			map[string]any{"id": 12, "type": "heartbeat"},
		},
	})})

	queue := &Queue{ID: "q1", LastEventID: 9}
	messages, err := client.Poll(context.Background(), queue)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != 2001 {
		t.Fatalf("messages = %+v, want only message 2001", messages)
	}
	if len(messages[0].Flags) != 1 || messages[0].Flags[0] != "mentioned" {
		t.Errorf("Flags = %v, want event flags copied onto the message", messages[0].Flags)
	}
	if messages[0].LocalMessageID != "local-1" {
		t.Errorf("LocalMessageID = %q", messages[0].LocalMessageID)
	}
	if queue.LastEventID != 12 {
		t.Errorf("cursor = %d, want 12 (heartbeats count)", queue.LastEventID)
	}
}

func TestPollAcceptsUntypedMessageEvents(t *testing.T) {
	client, _ := pollServer(t, scriptedResponse{http.StatusOK,
		`{"result":"success","msg":"","events":[{"id":5,"message":{"id":1001,"content":"hi","sender_email":"alice@example.com","subject":"standup","type":"stream"}},{"id":6}]}`,
	})

	queue := &Queue{ID: "q1", LastEventID: 0}
	messages, err := client.Poll(context.Background(), queue)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != 1001 {
		t.Fatalf("messages = %+v, want only message 1001", messages)
	}
	if queue.LastEventID != 6 {
		t.Errorf("cursor = %d, want 6", queue.LastEventID)
	}
}

func TestPollLeavesCursorOnUnreadableResponse(t *testing.T) {
	tests := []struct {
		name       string
		response   scriptedResponse
		wantCursor int64
	}{
		{"HTML error page", scriptedResponse{http.StatusBadGateway, "<html>bad gateway</html>"}, 5},
		{"missing result", scriptedResponse{http.StatusOK, map[string]any{"events": []any{map[string]any{"id": 50}}}}, 5},
		{"events not a list", scriptedResponse{http.StatusOK, success(map[string]any{"events": "none"})}, 5},
		{"success without events", scriptedResponse{http.StatusOK, success(nil)}, 5},
		// The envelope and the event ids are readable, so the cursor
		// moves even though the payload is malformed.
		{"mistyped message", scriptedResponse{http.StatusOK, success(map[string]any{"events": []any{map[string]any{"id": 6, "type": "message", "message": "text"}}})}, 6},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, _ := pollServer(t, test.response)
			queue := &Queue{ID: "q1", LastEventID: 5}
			_, err := client.Poll(context.Background(), queue)
			if !IsProtocolError(err) {
				t.Fatalf("expected ProtocolError, got %v", err)
			}
			if queue.LastEventID != test.wantCursor {
				t.Errorf("cursor = %d, want %d", queue.LastEventID, test.wantCursor)
			}
		})
	}
}

func TestPollTransportFailureLeavesCursor(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		site := server.URL
		server.Close()

		client := clientFor(t, site)
		queue := &Queue{ID: "q1", LastEventID: 5}
		_, err := client.Poll(context.Background(), queue)
		if !IsTransportError(err) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if queue.LastEventID != 5 {
			t.Errorf("cursor = %d, want 5", queue.LastEventID)
		}
	})

	t.Run("cancelled long poll", func(t *testing.T) {
		release := make(chan struct{})
		client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
			select {
			case <-request.Context().Done():
			case <-release:
			}
		})
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		queue := &Queue{ID: "q1", LastEventID: 5}
		_, err := client.Poll(ctx, queue)
		if !IsTransportError(err) || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected TransportError wrapping context.Canceled, got %v", err)
		}
		if queue.LastEventID != 5 {
			t.Errorf("cursor = %d, want 5", queue.LastEventID)
		}
	})
}

func TestPollRequiresQueue(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.Poll(context.Background(), nil); err == nil {
		t.Error("Poll(nil) succeeded")
	}
	if _, err := client.Poll(context.Background(), &Queue{}); err == nil {
		t.Error("Poll(empty queue) succeeded")
	}
}

func TestDeleteQueue(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodDelete || request.URL.Path != "/api/v1/events" {
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		form := readForm(t, request)
		if got := form.Get("queue_id"); got != "q1" {
			t.Errorf("queue_id = %q", got)
		}
		writeJSON(writer, http.StatusOK, success(nil))
	})
	if err := client.DeleteQueue(context.Background(), &Queue{ID: "q1", LastEventID: 3}); err != nil {
		t.Fatalf("DeleteQueue: %v", err)
	}
}
