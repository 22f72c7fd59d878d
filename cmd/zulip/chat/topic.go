// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
)

type topicParams struct {
	cli.SessionConfig
}

// MuteCommand returns the "mute" command.
func MuteCommand() *cli.Command {
	return topicMuteCommand("mute", "Mute a topic for your account", "muting topic",
		func(ctx context.Context, session *cli.Session, stream, topic string) error {
			return session.Client.MuteTopic(ctx, stream, topic)
		})
}

// UnmuteCommand returns the "unmute" command.
func UnmuteCommand() *cli.Command {
	return topicMuteCommand("unmute", "Unmute a topic for your account", "unmuting topic",
		func(ctx context.Context, session *cli.Session, stream, topic string) error {
			return session.Client.UnmuteTopic(ctx, stream, topic)
		})
}

func topicMuteCommand(name, summary, action string, apply func(context.Context, *cli.Session, string, string) error) *cli.Command {
	var params topicParams
	usage := "zulip " + name + " [flags] <stream> <topic>"

	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams(name, &params)
		},
		Run: func(args []string) error {
			if err := exactArgs(args, 2, usage); err != nil {
				return err
			}
			session, err := params.Connect(params.Logger())
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, cancel := requestContext()
			defer cancel()
			if err := apply(ctx, session, args[0], args[1]); err != nil {
				return cli.FromAPIError(action, err)
			}
			printf("%sd %s > %s\n", name, args[0], args[1])
			return nil
		},
	}
}
