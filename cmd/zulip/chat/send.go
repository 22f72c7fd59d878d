// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/zulip"
)

const sendUsage = "zulip send [flags] <stream> <topic> <content|->"

type sendParams struct {
	cli.SessionConfig
	cli.JSONOutput
	QueueID string `json:"queue_id" flag:"queue-id" desc:"event queue that should receive the echo of this message"`
	LocalID string `json:"local_id" flag:"local-id" desc:"echo id (default: a random UUID when --queue-id is set)"`
}

// sendResult is the JSON output of send.
type sendResult struct {
	ID      int64  `json:"id"`
	LocalID string `json:"local_id,omitempty"`
}

// SendCommand returns the "send" command.
func SendCommand() *cli.Command {
	var params sendParams

	return &cli.Command{
		Name:    "send",
		Summary: "Post a message to a stream topic",
		Description: `Post a message to a topic of a stream. Pass "-" as the content to read
it from stdin.

With --queue-id, the message event that arrives on that queue carries
--local-id as local_message_id, letting a client that watches the queue
recognize its own message.`,
		Usage: sendUsage,
		Examples: []cli.Example{
			{Description: "Post a one-liner", Command: `zulip send ops deploys "rolled out v1.4"`},
			{Description: "Post a file", Command: "zulip send ops reports - < report.md"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("send", &params)
		},
		Run: func(args []string) error {
			if err := exactArgs(args, 3, sendUsage); err != nil {
				return err
			}
			content, err := readContent(args[2])
			if err != nil {
				return err
			}
			localID := params.LocalID
			if params.QueueID != "" && localID == "" {
				localID = uuid.NewString()
			}

			session, err := params.Connect(params.Logger())
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, cancel := requestContext()
			defer cancel()
			id, err := session.Client.PostMessage(ctx, zulip.PostRequest{
				Stream:  args[0],
				Topic:   args[1],
				Content: content,
				QueueID: params.QueueID,
				LocalID: localID,
			})
			if err != nil {
				return cli.FromAPIError("sending message", err)
			}

			result := sendResult{ID: id, LocalID: localID}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			printf("sent message %d\n", id)
			return nil
		},
	}
}
