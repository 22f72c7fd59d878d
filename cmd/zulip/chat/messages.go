// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/render"
	"github.com/bureau-foundation/zulip/zulip"
)

type messagesParams struct {
	cli.SessionConfig
	cli.JSONOutput
	narrowParams
	renderParams
	Anchor string `json:"anchor" flag:"anchor" desc:"message id to center on (default: first unread)"`
	Before int    `json:"before" flag:"before" desc:"messages before the anchor" default:"20"`
	After  int    `json:"after"  flag:"after"  desc:"messages after the anchor" default:"0"`
	HTML   bool   `json:"html"   flag:"html"   desc:"request server-rendered HTML instead of the markdown source"`
}

// MessagesCommand returns the "messages" command, which prints a window
// of message history.
func MessagesCommand() *cli.Command {
	var params messagesParams

	return &cli.Command{
		Name:    "messages",
		Summary: "Print a window of message history",
		Description: `Fetch up to --before messages before and --after messages after an
anchor message, filtered by narrows. Without --anchor the window is
centered on your first unread message.

Messages are rendered from their markdown source. Use --json for the
raw server objects.`,
		Usage: "zulip messages [flags]",
		Examples: []cli.Example{
			{Description: "Last 20 messages in a topic", Command: "zulip messages -n stream:ops -n topic:deploys --anchor 1000000000"},
			{Description: "Unread mentions as JSON", Command: "zulip messages -n is:mentioned -n is:unread --after 50 --json"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("messages", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q\n\nusage: zulip messages [flags]", args[0])
			}
			anchor, err := parseAnchor(params.Anchor)
			if err != nil {
				return err
			}
			if params.Before < 0 || params.After < 0 {
				return cli.Validation("--before and --after must not be negative")
			}
			narrows, _, err := params.resolve()
			if err != nil {
				return err
			}

			session, err := params.Connect(params.Logger())
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, cancel := requestContext()
			defer cancel()
			response, err := session.Client.GetMessages(ctx, zulip.MessagesOptions{
				Anchor:     anchor,
				NumBefore:  params.Before,
				NumAfter:   params.After,
				Narrows:    narrows,
				RawContent: !params.HTML,
			})
			if err != nil {
				return cli.FromAPIError("fetching messages", err)
			}

			if done, err := params.EmitJSON(response); done {
				return err
			}
			options := params.options()
			for index, message := range response.Messages {
				if index > 0 {
					printf("\n")
				}
				printf("%s\n", render.Message(message, options))
			}
			return nil
		},
	}
}
