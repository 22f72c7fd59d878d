// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/archive"
	"github.com/bureau-foundation/zulip/lib/render"
	"github.com/bureau-foundation/zulip/zulip"
)

// ArchiveCommand returns the "archive" command group for files written
// by export.
func ArchiveCommand() *cli.Command {
	return &cli.Command{
		Name:    "archive",
		Summary: "Inspect export archives",
		Description: `Check and read archives written by "zulip export".`,
		Subcommands: []*cli.Command{
			archiveVerifyCommand(),
			archiveCatCommand(),
		},
	}
}

type archiveVerifyParams struct {
	cli.JSONOutput
	Digest string `json:"digest" flag:"digest" desc:"expected digest (hex); verification fails on mismatch"`
}

// archiveSummary is the JSON output of archive verify.
type archiveSummary struct {
	Path        string    `json:"path"`
	Site        string    `json:"site,omitempty"`
	Narrow      string    `json:"narrow,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Compression string    `json:"compression"`
	Messages    int64     `json:"messages"`
	Digest      string    `json:"digest"`
}

// archiveDamage is the JSON output of archive verify for a damaged
// file.
type archiveDamage struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func archiveVerifyCommand() *cli.Command {
	var params archiveVerifyParams
	const usage = "zulip archive verify [flags] <file>"

	return &cli.Command{
		Name:    "verify",
		Summary: "Check an archive's integrity",
		Description: `Read every frame of an archive, checking sizes, decompression, and the
trailer's record count and digest. Exits with status 1 on any damage.`,
		Usage: usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("verify", &params)
		},
		Run: func(args []string) error {
			if err := exactArgs(args, 1, usage); err != nil {
				return err
			}
			var want archive.Digest
			if params.Digest != "" {
				parsed, err := archive.ParseDigest(params.Digest)
				if err != nil {
					return cli.Validation("--digest: %w", err)
				}
				want = parsed
			}

			summary, err := verifyArchive(args[0])
			if errors.Is(err, archive.ErrCorrupt) {
				if params.OutputJSON {
					if err := cli.WriteJSON(archiveDamage{Path: args[0], Error: err.Error()}); err != nil {
						return err
					}
				} else {
					printf("%s: damaged: %v\n", args[0], err)
				}
				return &cli.ExitError{Code: 1}
			}
			if err != nil {
				return err
			}
			if params.Digest != "" && summary.Digest != want.String() {
				return cli.Validation("%s: digest %s does not match expected %s", args[0], summary.Digest, want)
			}
			if done, err := params.EmitJSON(summary); done {
				return err
			}
			printf("%s: ok, %d messages, %s\ndigest %s\n", summary.Path, summary.Messages, summary.Compression, summary.Digest)
			return nil
		},
	}
}

func verifyArchive(path string) (*archiveSummary, error) {
	file, err := openArchiveFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := archive.NewReader(file)
	if err != nil {
		return nil, archiveError(path, err)
	}
	for {
		var message zulip.Message
		err := reader.Next(&message)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, archiveError(path, err)
		}
	}
	header := reader.Header()
	return &archiveSummary{
		Path:        path,
		Site:        header.Site,
		Narrow:      header.Narrow,
		CreatedAt:   header.CreatedAt,
		Compression: header.Compression.String(),
		Messages:    reader.Count(),
		Digest:      reader.Digest().String(),
	}, nil
}

type archiveCatParams struct {
	cli.JSONOutput
	renderParams
}

func archiveCatCommand() *cli.Command {
	var params archiveCatParams
	const usage = "zulip archive cat [flags] <file>"

	return &cli.Command{
		Name:    "cat",
		Summary: "Print the messages in an archive",
		Description: `Print every message in an archive, rendered like "zulip messages", or
one JSON object per line with --json.`,
		Usage: usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("cat", &params)
		},
		Run: func(args []string) error {
			if err := exactArgs(args, 1, usage); err != nil {
				return err
			}
			file, err := openArchiveFile(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			reader, err := archive.NewReader(file)
			if err != nil {
				return archiveError(args[0], err)
			}

			encoder := cli.NewJSONLines()
			options := params.options()
			for {
				var message zulip.Message
				err := reader.Next(&message)
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return archiveError(args[0], err)
				}
				if params.OutputJSON {
					if err := encoder.Encode(message); err != nil {
						return cli.Internal("writing output: %w", err)
					}
					continue
				}
				if reader.Count() > 1 {
					printf("\n")
				}
				printf("%s\n", render.Message(message, options))
			}
		},
	}
}

func openArchiveFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, cli.NotFound("archive %s does not exist", path)
	}
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	return file, nil
}

// archiveError reports damage as a validation failure and anything
// else as internal.
func archiveError(path string, err error) error {
	if errors.Is(err, archive.ErrCorrupt) {
		return cli.Validation("%s: %w", path, err)
	}
	return cli.Internal("reading %s: %w", path, err)
}
