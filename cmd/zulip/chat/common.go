// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/narrowfile"
	"github.com/bureau-foundation/zulip/lib/render"
	"github.com/bureau-foundation/zulip/zulip"
)

// requestTimeout bounds one-shot commands. Long-running commands
// (watch, tui) use signalContext alone.
const requestTimeout = 30 * time.Second

// defaultWidth is the render width when stdout is not a terminal.
const defaultWidth = 100

// stdin is read by commands that accept "-" for content. Tests replace
// it.
var stdin io.Reader = os.Stdin

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// requestContext is signalContext bounded by requestTimeout.
func requestContext() (context.Context, context.CancelFunc) {
	ctx, stop := signalContext()
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// narrowParams is embedded by commands that filter messages.
type narrowParams struct {
	Narrows    []string `json:"narrows"     flag:"narrow,n"   desc:"filter as operator:operand, prefix - to negate (repeatable)"`
	NarrowFile string   `json:"narrow_file" flag:"narrow-file" desc:"JSONC file of narrows; combined with --narrow"`
}

// resolve returns the narrows from --narrow-file followed by --narrow,
// and whether the file asked for all public streams.
func (p *narrowParams) resolve() ([]zulip.Narrow, bool, error) {
	var narrows []zulip.Narrow
	allPublicStreams := false
	if p.NarrowFile != "" {
		file, err := narrowfile.ReadFile(p.NarrowFile)
		if err != nil {
			return nil, false, cli.Validation("%w", err)
		}
		narrows = append(narrows, file.Narrows...)
		allPublicStreams = file.AllPublicStreams
	}
	for _, text := range p.Narrows {
		narrow, err := zulip.ParseNarrow(text)
		if err != nil {
			return nil, false, cli.Validation("--narrow: %w", err)
		}
		narrows = append(narrows, narrow)
	}
	return narrows, allPublicStreams, nil
}

// renderParams is embedded by commands that print rendered messages.
type renderParams struct {
	Plain bool `json:"plain" flag:"plain" desc:"no colors or styling (default when stdout is not a terminal)"`
	Width int  `json:"width" flag:"width" desc:"wrap width (default: terminal width)"`
}

func (p *renderParams) options() render.Options {
	options := render.Options{Width: p.Width, Plain: p.Plain}
	file, isFile := cli.Stdout.(*os.File)
	terminal := isFile && cli.IsTerminal(file)
	if !terminal {
		options.Plain = true
	}
	if options.Width == 0 {
		options.Width = defaultWidth
		if terminal {
			if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
				options.Width = width
			}
		}
	}
	return options
}

// parseAnchor parses --anchor. Empty means the first unread message.
func parseAnchor(text string) (*int64, error) {
	if text == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id < 0 {
		return nil, cli.Validation("--anchor must be a message id, got %q", text)
	}
	return &id, nil
}

// readContent returns text, or all of stdin when text is "-".
func readContent(text string) (string, error) {
	if text != "-" {
		return text, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", cli.Internal("reading stdin: %w", err)
	}
	return string(data), nil
}

// exactArgs checks the positional argument count.
func exactArgs(args []string, count int, usage string) error {
	if len(args) != count {
		return cli.Validation("expected %d argument(s), got %d\n\nusage: %s", count, len(args), usage)
	}
	return nil
}

func printf(format string, args ...any) {
	fmt.Fprintf(cli.Stdout, format, args...)
}
