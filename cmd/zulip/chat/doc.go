// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat implements the zulip CLI's commands: reading and
// posting messages, muting topics, managing streams, following an
// event queue (watch and tui), exporting history to archives, and
// managing the settings file and its sealed API key.
//
// Every command that talks to a server builds its client through
// [cli.SessionConfig], so --config, --site and --email work the same
// everywhere. Results go to [cli.Stdout]; --json switches them to JSON.
package chat
