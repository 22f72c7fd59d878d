// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the zulip CLI settings file.
//
// The file is YAML and lives at one place, chosen in this order:
//
//   - the --config flag
//   - the ZULIP_CONFIG environment variable
//   - $XDG_CONFIG_HOME/zulip/config.yaml (~/.config/zulip/config.yaml)
//
// An explicitly named file must exist. The default file may be absent,
// in which case every setting comes from the environment.
//
// After the file is read, ZULIP_* environment variables overlay it
// (ZULIP_SITE, ZULIP_EMAIL, ZULIP_API_KEY, ...). ${HOME} and
// ${VAR:-default} patterns in path fields are expanded.
//
// The API key is held either in plaintext (api_key) or age-encrypted
// (api_key_sealed plus identity_file); see lib/sealed.
//
// Key exports:
//
//   - [Config] -- the settings
//   - [Path] -- resolve the file location
//   - [Load] and [LoadFile] -- read, overlay, expand
//   - [Config.Validate] -- required fields and key exclusivity
package config
