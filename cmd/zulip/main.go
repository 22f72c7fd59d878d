// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/zulip/cmd/zulip/chat"
	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	err := chat.Root().Execute(args)
	if err == nil {
		return 0
	}
	// Commands that print their own output return an ExitError.
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var toolErr *cli.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Category.ExitCode()
	}
	return 1
}
