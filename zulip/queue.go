// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	registerPath = "api/v1/register"
	eventsPath   = "api/v1/events"
)

// messageEventTypes is the only event category the client registers
// for.
const messageEventTypes = `["message"]`

type registerResponse struct {
	QueueID     string `json:"queue_id"`
	LastEventID int64  `json:"last_event_id"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
}

// RegisterQueue creates a server-side event queue delivering message
// events that match narrows. When allPublicStreams is true the queue
// also receives messages from every public stream, subscribed or not.
// An empty narrows slice adds no filter beyond that flag.
//
// The returned Queue's cursor is the server's last_event_id at
// registration: no event at or below it is ever delivered through the
// queue. RegisterQueue does not retry.
func (c *Client) RegisterQueue(ctx context.Context, allPublicStreams bool, narrows []Narrow) (*Queue, error) {
	narrow, err := EncodeNarrows(narrows)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"event_types":        {messageEventTypes},
		"all_public_streams": {strconv.FormatBool(allPublicStreams)},
		"narrow":             {narrow},
	}
	response, err := c.do(ctx, http.MethodPost, registerPath, nil, form)
	if err != nil {
		return nil, err
	}

	registered, err := decodeResponse[registerResponse](response, "queue_id", "last_event_id")
	if err != nil {
		return nil, err
	}
	if registered.QueueID == "" {
		return nil, response.protocolError("register response has an empty queue_id", nil)
	}

	c.logger.Info("registered event queue",
		"queue_id", registered.QueueID,
		"last_event_id", registered.LastEventID,
		"all_public_streams", allPublicStreams,
		"narrows", len(narrows),
	)
	return &Queue{ID: registered.QueueID, LastEventID: registered.LastEventID}, nil
}

// Poll performs one long-poll cycle on queue and returns the messages it
// delivered, in the order the server sent them. The request may block
// until an event arrives or the server's long-poll timeout elapses; a
// timeout returns an empty batch and a nil error.
//
// Whenever the response is a parseable envelope, queue.LastEventID is
// advanced to the highest event id in it before the result is
// inspected. A rejected poll (for example an expired queue) therefore
// still consumes the event ids it reported, and the returned
// *ServerError comes back with the cursor already moved. A transport
// failure, a cancelled ctx, or a body that is not an envelope leaves
// the cursor untouched.
//
// Events that are not message events (heartbeats) advance the cursor
// but produce no message.
//
// Poll does not lock queue. Callers must not run two polls on the same
// Queue concurrently.
func (c *Client) Poll(ctx context.Context, queue *Queue) ([]Message, error) {
	if queue == nil || queue.ID == "" {
		return nil, fmt.Errorf("zulip: poll requires a registered queue")
	}

	query := url.Values{
		"queue_id":      {queue.ID},
		"last_event_id": {strconv.FormatInt(queue.LastEventID, 10)},
	}
	response, err := c.do(ctx, http.MethodGet, eventsPath, query, nil)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeEnvelope(response)
	if err != nil {
		return nil, err
	}

	previous := queue.LastEventID
	observed, observeErr := observedEventIDs(decoded)
	if observeErr == nil {
		queue.LastEventID = advanceCursor(queue.LastEventID, observed)
	}

	if !decoded.succeeded() {
		c.logger.Debug("event poll rejected",
			"queue_id", queue.ID,
			"last_event_id", queue.LastEventID,
			"code", decoded.code,
		)
		return nil, decoded.serverError()
	}
	if observeErr != nil {
		return nil, response.protocolError("events field is not a list of events", observeErr)
	}

	payload, err := decodePayload[eventsResponse](decoded, "events")
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(payload.Events))
	for _, event := range payload.Events {
		if event.Message == nil || (event.Type != "" && event.Type != EventTypeMessage) {
			continue
		}
		message := *event.Message
		if len(event.Flags) > 0 {
			message.Flags = event.Flags
		}
		if event.LocalMessageID != "" {
			message.LocalMessageID = event.LocalMessageID
		}
		messages = append(messages, message)
	}

	c.logger.Debug("event poll complete",
		"queue_id", queue.ID,
		"previous_event_id", previous,
		"last_event_id", queue.LastEventID,
		"events", len(payload.Events),
		"messages", len(messages),
	)
	return messages, nil
}

// observedEventIDs extracts the id of every event in the envelope
// without decoding anything else, so that it works on failure envelopes
// too. A missing or null events field yields no ids.
func observedEventIDs(decoded *envelope) ([]int64, error) {
	raw, ok := decoded.fields["events"]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var events []struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(events))
	for _, event := range events {
		if event.ID != nil {
			ids = append(ids, *event.ID)
		}
	}
	return ids, nil
}

// advanceCursor returns max(cursor, ids...). The cursor never regresses.
func advanceCursor(cursor int64, ids []int64) int64 {
	for _, id := range ids {
		if id > cursor {
			cursor = id
		}
	}
	return cursor
}

// DeleteQueue asks the server to discard queue. Nothing in the client
// calls this implicitly; an abandoned queue expires on its own after
// the server's idle timeout.
func (c *Client) DeleteQueue(ctx context.Context, queue *Queue) error {
	if queue == nil || queue.ID == "" {
		return fmt.Errorf("zulip: delete requires a registered queue")
	}
	response, err := c.do(ctx, http.MethodDelete, eventsPath, nil, url.Values{"queue_id": {queue.ID}})
	if err != nil {
		return err
	}
	if err := expectSuccess(response); err != nil {
		return err
	}
	c.logger.Info("deleted event queue", "queue_id", queue.ID)
	return nil
}
