// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/version"
)

type versionParams struct {
	cli.JSONOutput
}

type versionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	UserAgent string `json:"user_agent"`
}

// VersionCommand returns the "version" command.
func VersionCommand() *cli.Command {
	var params versionParams

	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(args []string) error {
			result := versionResult{
				Version:   version.Short(),
				Commit:    version.Commit(),
				BuildTime: version.Time(),
				UserAgent: version.UserAgent(),
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			printf("zulip %s\n", version.Full())
			return nil
		},
	}
}
