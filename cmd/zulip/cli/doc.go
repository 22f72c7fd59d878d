// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-line framework for the zulip CLI.
//
// The central type is [Command]: a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory and a Run
// function. [Command.Execute] handles flag parsing, subcommand routing
// and help output. Unknown subcommands and flags get a "did you mean"
// suggestion when an edit distance of at most 3 finds one.
//
// Flags are usually declared as tagged struct fields and bound with
// [FlagsFromParams]. [SessionConfig] contributes the shared --config,
// --site and --email flags and turns the settings file into an
// authenticated [zulip.Client] via [SessionConfig.Connect].
//
// Commands return [ToolError] values so failures carry a category
// (validation, not found, transient, ...); [FromAPIError] derives the
// category from the client's error types. [ExitError] requests a
// specific exit code without an extra error line.
package cli
