// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the zulip binary and
// the API client's User-Agent.
//
// Four package-level variables are injected at build time via
// -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/zulip/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not injected the commit and time come from the VCS
// stamps Go embeds in the binary, if any. [Info] and [Full] format them for "zulip version";
// [UserAgent] is what every API request carries.
package version
