// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "github.com/bureau-foundation/zulip/cmd/zulip/cli"

// Root builds the complete command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "zulip",
		Description: `zulip: a command-line client for Zulip group chat.

Read and post messages, follow live traffic through an event queue,
manage streams and topic mutes, and archive history. Settings live in
~/.config/zulip/config.yaml (see "zulip config").`,
		Subcommands: []*cli.Command{
			MessagesCommand(),
			SendCommand(),
			WatchCommand(),
			TUICommand(),
			MuteCommand(),
			UnmuteCommand(),
			StreamCommand(),
			ExportCommand(),
			ArchiveCommand(),
			StateCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Examples: []cli.Example{
			{Description: "Create a settings file", Command: "zulip config init --site https://chat.example.com --email bot@example.com"},
			{Description: "Read the latest messages in a stream", Command: "zulip messages -n stream:general --anchor 10000000000"},
			{Description: "Follow a topic live", Command: "zulip watch -n stream:ops -n topic:deploys"},
			{Description: "Post from a script", Command: `zulip send ops deploys "done"`},
		},
	}
}
