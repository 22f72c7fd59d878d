// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/zulip"
)

// streamResult is the JSON output of the stream subcommands.
type streamResult struct {
	Name string `json:"name,omitempty"`
	ID   int64  `json:"id"`
}

// StreamCommand returns the "stream" command group.
func StreamCommand() *cli.Command {
	return &cli.Command{
		Name:    "stream",
		Summary: "Create, delete and look up streams",
		Subcommands: []*cli.Command{
			streamCreateCommand(),
			streamDeleteCommand(),
			streamIDCommand(),
		},
	}
}

type streamCreateParams struct {
	cli.SessionConfig
	cli.JSONOutput
	Description string `json:"description" flag:"description,d" desc:"stream description"`
	Announce    bool   `json:"announce"    flag:"announce"      desc:"announce the new stream to the organization"`
}

func streamCreateCommand() *cli.Command {
	var params streamCreateParams
	const usage = "zulip stream create [flags] <name>"

	return &cli.Command{
		Name:    "create",
		Summary: "Create a stream and subscribe to it",
		Description: `Create a stream by subscribing to it, then print its id. If the stream
already exists you are subscribed to it and its id is printed.`,
		Usage: usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create", &params)
		},
		Run: func(args []string) error {
			if err := exactArgs(args, 1, usage); err != nil {
				return err
			}
			session, err := params.Connect(params.Logger())
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, cancel := requestContext()
			defer cancel()
			id, err := session.Client.CreateStream(ctx, args[0], params.Description, params.Announce)
			if err != nil {
				return cli.FromAPIError("creating stream", err)
			}
			if done, err := params.EmitJSON(streamResult{Name: args[0], ID: id}); done {
				return err
			}
			printf("created stream %q (id %d)\n", args[0], id)
			return nil
		},
	}
}

type streamDeleteParams struct {
	cli.SessionConfig
}

func streamDeleteCommand() *cli.Command {
	var params streamDeleteParams
	const usage = "zulip stream delete [flags] <name|id>"

	return &cli.Command{
		Name:        "delete",
		Summary:     "Delete (archive) a stream",
		Description: "Delete a stream by id, or by name after looking the id up. Requires administrator rights.",
		Usage:       usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("delete", &params)
		},
		Run: func(args []string) error {
			if err := exactArgs(args, 1, usage); err != nil {
				return err
			}
			session, err := params.Connect(params.Logger())
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, cancel := requestContext()
			defer cancel()
			id, err := resolveStream(ctx, session.Client, args[0])
			if err != nil {
				return err
			}
			if err := session.Client.DeleteStream(ctx, id); err != nil {
				return cli.FromAPIError("deleting stream", err)
			}
			printf("deleted stream %d\n", id)
			return nil
		},
	}
}

type streamIDParams struct {
	cli.SessionConfig
	cli.JSONOutput
}

func streamIDCommand() *cli.Command {
	var params streamIDParams
	const usage = "zulip stream id [flags] <name>"

	return &cli.Command{
		Name:    "id",
		Summary: "Print a stream's id",
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("id", &params)
		},
		Run: func(args []string) error {
			if err := exactArgs(args, 1, usage); err != nil {
				return err
			}
			session, err := params.Connect(params.Logger())
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, cancel := requestContext()
			defer cancel()
			id, err := session.Client.GetStreamID(ctx, args[0])
			if err != nil {
				return cli.FromAPIError("looking up stream", err)
			}
			if done, err := params.EmitJSON(streamResult{Name: args[0], ID: id}); done {
				return err
			}
			printf("%d\n", id)
			return nil
		},
	}
}

// resolveStream accepts a numeric id or a stream name.
func resolveStream(ctx context.Context, client *zulip.Client, target string) (int64, error) {
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		if id <= 0 {
			return 0, cli.Validation("stream id must be positive, got %d", id)
		}
		return id, nil
	}
	id, err := client.GetStreamID(ctx, target)
	if err != nil {
		return 0, cli.FromAPIError("looking up stream", err)
	}
	return id, nil
}
