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
	subscriptionsPath = "api/v1/users/me/subscriptions"
	getStreamIDPath   = "api/v1/get_stream_id"
	streamsPath       = "api/v1/streams"
)

type streamSubscription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type streamIDResponse struct {
	StreamID int64 `json:"stream_id"`
}

// CreateStream creates a stream by subscribing the authenticated user
// to it, then resolves the new stream's id.
//
// The two calls are not atomic. If the subscription succeeds but the
// id lookup fails, the stream exists on the server and the returned
// error wraps ErrStreamCreatedUnresolved; call GetStreamID to finish.
// No rollback is attempted.
func (c *Client) CreateStream(ctx context.Context, name, description string, announce bool) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("zulip: stream name is required")
	}

	subscriptions, err := json.Marshal([]streamSubscription{{Name: name, Description: description}})
	if err != nil {
		return 0, fmt.Errorf("zulip: encoding subscriptions: %w", err)
	}
	form := url.Values{
		"subscriptions": {string(subscriptions)},
		"announce":      {strconv.FormatBool(announce)},
	}
	response, err := c.do(ctx, http.MethodPost, subscriptionsPath, nil, form)
	if err != nil {
		return 0, err
	}
	if err := expectSuccess(response); err != nil {
		return 0, err
	}

	streamID, err := c.GetStreamID(ctx, name)
	if err != nil {
		c.logger.Warn("stream created but id lookup failed", "stream", name, "error", err)
		return 0, fmt.Errorf("%w: %q: %w", ErrStreamCreatedUnresolved, name, err)
	}

	c.logger.Info("created stream", "stream", name, "stream_id", streamID, "announce", announce)
	return streamID, nil
}

// GetStreamID resolves a stream name to its numeric id.
func (c *Client) GetStreamID(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("zulip: stream name is required")
	}
	response, err := c.do(ctx, http.MethodGet, getStreamIDPath, url.Values{"stream": {name}}, nil)
	if err != nil {
		return 0, err
	}
	resolved, err := decodeResponse[streamIDResponse](response, "stream_id")
	if err != nil {
		return 0, err
	}
	return resolved.StreamID, nil
}

// DeleteStream archives the stream with the given id.
func (c *Client) DeleteStream(ctx context.Context, streamID int64) error {
	if streamID <= 0 {
		return fmt.Errorf("zulip: invalid stream id %d", streamID)
	}
	path := streamsPath + "/" + strconv.FormatInt(streamID, 10)
	response, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	if err := expectSuccess(response); err != nil {
		return err
	}
	c.logger.Info("deleted stream", "stream_id", streamID)
	return nil
}
