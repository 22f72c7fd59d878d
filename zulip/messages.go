// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	messagesPath    = "api/v1/messages"
	mutedTopicsPath = "api/v1/users/me/subscriptions/muted_topics"
)

// GetMessages fetches a window of message history. Exactly one of
// "anchor" and "use_first_unread_anchor" is sent: the anchor when
// options.Anchor is set, the first-unread flag otherwise.
func (c *Client) GetMessages(ctx context.Context, options MessagesOptions) (*MessagesResponse, error) {
	if options.NumBefore < 0 || options.NumAfter < 0 {
		return nil, fmt.Errorf("zulip: message window bounds must not be negative (before=%d, after=%d)", options.NumBefore, options.NumAfter)
	}
	narrow, err := EncodeNarrows(options.Narrows)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"num_before": {strconv.Itoa(options.NumBefore)},
		"num_after":  {strconv.Itoa(options.NumAfter)},
		"narrow":     {narrow},
	}
	if options.RawContent {
		query.Set("apply_markdown", "false")
	}
	if options.Anchor != nil {
		query.Set("anchor", strconv.FormatInt(*options.Anchor, 10))
	} else {
		query.Set("use_first_unread_anchor", "true")
	}

	response, err := c.do(ctx, http.MethodGet, messagesPath, query, nil)
	if err != nil {
		return nil, err
	}
	history, err := decodeResponse[MessagesResponse](response)
	if err != nil {
		return nil, err
	}
	if history.Messages == nil {
		history.Messages = []Message{}
	}
	return &history, nil
}

// PostMessage posts a message to a stream topic and returns the new
// message's id.
func (c *Client) PostMessage(ctx context.Context, request PostRequest) (int64, error) {
	if request.Stream == "" {
		return 0, fmt.Errorf("zulip: post requires a destination stream")
	}
	if request.Topic == "" {
		return 0, fmt.Errorf("zulip: post requires a topic")
	}
	if request.Content == "" {
		return 0, fmt.Errorf("zulip: post requires content")
	}

	form := url.Values{
		"type":    {"stream"},
		"to":      {request.Stream},
		"subject": {request.Topic},
		"content": {request.Content},
	}
	if request.QueueID != "" {
		form.Set("queue_id", request.QueueID)
	}
	if request.LocalID != "" {
		form.Set("local_id", request.LocalID)
	}

	response, err := c.do(ctx, http.MethodPost, messagesPath, nil, form)
	if err != nil {
		return 0, err
	}
	posted, err := decodeResponse[PostResponse](response, "id")
	if err != nil {
		return 0, err
	}
	c.logger.Debug("posted message", "stream", request.Stream, "topic", request.Topic, "id", posted.ID)
	return posted.ID, nil
}

// MuteTopic mutes topic in stream for the authenticated user.
func (c *Client) MuteTopic(ctx context.Context, stream, topic string) error {
	return c.setTopicMute(ctx, stream, topic, "add")
}

// UnmuteTopic reverses MuteTopic.
func (c *Client) UnmuteTopic(ctx context.Context, stream, topic string) error {
	return c.setTopicMute(ctx, stream, topic, "remove")
}

func (c *Client) setTopicMute(ctx context.Context, stream, topic, op string) error {
	if stream == "" || topic == "" {
		return fmt.Errorf("zulip: muting requires both stream and topic")
	}
	form := url.Values{
		"stream": {stream},
		"topic":  {topic},
		"op":     {op},
	}
	response, err := c.do(ctx, http.MethodPatch, mutedTopicsPath, nil, form)
	if err != nil {
		return err
	}
	return expectSuccess(response)
}
