// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/archive"
	"github.com/bureau-foundation/zulip/zulip"
)

const exportUsage = "zulip export [flags] --output <file>"

type exportParams struct {
	cli.SessionConfig
	cli.JSONOutput
	narrowParams
	Output      string `json:"output"      flag:"output,o"    desc:"archive file to write (required)"`
	Anchor      int64  `json:"anchor"      flag:"anchor"      desc:"first message id to export (0: the oldest)"`
	Limit       int    `json:"limit"       flag:"limit"       desc:"stop after this many messages (0: no limit)"`
	BatchSize   int    `json:"batch_size"  flag:"batch-size"  desc:"messages per history request" default:"1000"`
	Compression string `json:"compression" flag:"compression" desc:"frame compression: zstd, lz4, or none" default:"zstd"`
}

// exportResult is the JSON output of export.
type exportResult struct {
	Path        string `json:"path"`
	Messages    int64  `json:"messages"`
	Digest      string `json:"digest"`
	Compression string `json:"compression"`
}

// ExportCommand returns the "export" command, which pages through
// message history into an archive file.
func ExportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Archive message history to a file",
		Description: `Page forward through the history matching the narrows, starting at
--anchor, and write every message to a compressed archive. The digest
printed at the end covers every record; "zulip archive verify" checks
it.

Messages are exported as markdown source, the form "zulip archive cat"
renders.`,
		Usage: exportUsage,
		Examples: []cli.Example{
			{Description: "Archive a stream", Command: "zulip export -n stream:ops -o ops.zarc"},
			{Description: "The first 5000 messages, LZ4", Command: "zulip export --limit 5000 --compression lz4 -o head.zarc"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("export", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q\n\nusage: %s", args[0], exportUsage)
			}
			if params.Output == "" {
				return cli.Validation("--output is required\n\nusage: %s", exportUsage)
			}
			if params.BatchSize < 1 || params.Limit < 0 || params.Anchor < 0 {
				return cli.Validation("--batch-size must be positive and --limit and --anchor must not be negative")
			}
			compression, err := archive.ParseCompression(params.Compression)
			if err != nil {
				return cli.Validation("--compression: %w", err)
			}
			narrows, _, err := params.resolve()
			if err != nil {
				return err
			}
			encoded, err := zulip.EncodeNarrows(narrows)
			if err != nil {
				return cli.Validation("%w", err)
			}

			logger := params.Logger().With("command", "export")
			session, err := params.Connect(logger)
			if err != nil {
				return err
			}
			defer session.Close()

			file, err := os.Create(params.Output)
			if err != nil {
				return cli.Internal("%w", err)
			}
			writer, err := archive.NewWriter(file, archive.Header{
				Version:     archive.Version,
				Compression: compression,
				Site:        session.Client.Site(),
				Narrow:      encoded,
				CreatedAt:   time.Now().UTC(),
			})
			if err == nil {
				ctx, stop := signalContext()
				err = exportHistory(ctx, session.Client, writer, narrows, &params)
				stop()
			}
			var digest archive.Digest
			if err == nil {
				digest, err = writer.Close()
			}
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(params.Output)
				var toolErr *cli.ToolError
				if errors.As(err, &toolErr) {
					return err
				}
				return cli.Internal("writing %s: %w", params.Output, err)
			}

			result := exportResult{
				Path:        params.Output,
				Messages:    writer.Count(),
				Digest:      digest.String(),
				Compression: compression.String(),
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			printf("exported %d messages to %s\ndigest %s\n", result.Messages, result.Path, result.Digest)
			return nil
		},
	}
}

// historyReader is the part of the client export pages through.
type historyReader interface {
	GetMessages(ctx context.Context, options zulip.MessagesOptions) (*zulip.MessagesResponse, error)
}

// exportHistory writes messages in id order from params.Anchor until
// the newest message or params.Limit. Each page is anchored on the last
// id written; the anchor message is returned again and skipped.
func exportHistory(ctx context.Context, client historyReader, writer *archive.Writer, narrows []zulip.Narrow, params *exportParams) error {
	anchor := params.Anchor
	lastWritten := int64(-1)
	for {
		requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		page, err := client.GetMessages(requestCtx, zulip.MessagesOptions{
			Anchor:     &anchor,
			NumAfter:   params.BatchSize,
			Narrows:    narrows,
			RawContent: true,
		})
		cancel()
		if err != nil {
			return cli.FromAPIError("fetching history", err)
		}

		progressed := false
		for _, message := range page.Messages {
			if message.ID <= lastWritten {
				continue
			}
			if err := writer.Write(message); err != nil {
				return err
			}
			lastWritten = message.ID
			progressed = true
			if params.Limit > 0 && writer.Count() >= int64(params.Limit) {
				return nil
			}
		}
		if page.FoundNewest || !progressed {
			return nil
		}
		anchor = lastWritten
	}
}
