// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable that overlays a
// setting.
const EnvPrefix = "ZULIP_"

// PathEnv names the environment variable that points at the settings
// file.
const PathEnv = "ZULIP_CONFIG"

// Config is the CLI's settings.
type Config struct {
	// Site is the server's base URL, e.g. https://chat.example.com.
	Site string `yaml:"site" env:"SITE"`

	// Email identifies the account (bot or user) the API key belongs to.
	Email string `yaml:"email" env:"EMAIL"`

	// APIKey is the plaintext key. Prefer APIKeySealed.
	APIKey string `yaml:"api_key" env:"API_KEY"`

	// APIKeySealed is the key encrypted with age to the identity in
	// IdentityFile, base64-encoded (see `zulip config seal`).
	APIKeySealed string `yaml:"api_key_sealed" env:"API_KEY_SEALED"`

	// IdentityFile is the age key file that opens APIKeySealed.
	IdentityFile string `yaml:"identity_file" env:"IDENTITY_FILE"`

	// Watch configures `zulip watch`.
	Watch WatchConfig `yaml:"watch" envPrefix:"WATCH_"`
}

// WatchConfig configures the long-poll loop.
type WatchConfig struct {
	// StateFile persists the queue handle between runs. Empty disables
	// resume.
	StateFile string `yaml:"state_file" env:"STATE_FILE"`

	// MaxConsecutiveFailures is how many polls in a row may fail before
	// watch gives up.
	// Default: 5
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" env:"MAX_CONSECUTIVE_FAILURES"`

	// InitialBackoff is the first retry wait; it doubles per failure.
	// Default: 1s
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"INITIAL_BACKOFF"`

	// MaxBackoff caps the retry wait.
	// Default: 30s
	MaxBackoff time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
}

// Default returns the configuration before the file and environment
// are applied.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			MaxConsecutiveFailures: 5,
			InitialBackoff:         time.Second,
			MaxBackoff:             30 * time.Second,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/zulip/config.yaml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	directory, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(directory, "zulip", "config.yaml"), nil
}

// Path resolves the settings file location. flagValue is the --config
// flag (empty when not given). explicit reports whether the path was
// named by the user rather than defaulted.
func Path(flagValue string) (path string, explicit bool, err error) {
	if flagValue != "" {
		return flagValue, true, nil
	}
	if fromEnv := os.Getenv(PathEnv); fromEnv != "" {
		return fromEnv, true, nil
	}
	path, err = DefaultPath()
	return path, false, err
}

// Load resolves the settings path with Path and loads it. A missing
// default file is not an error.
func Load(flagValue string) (*Config, error) {
	path, explicit, err := Path(flagValue)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return loadEnvironment(Default(), nil)
	}
	return cfg, err
}

// LoadFile loads path, then overlays the environment and expands
// variables in path fields. Unknown keys in the file are errors.
func LoadFile(path string) (*Config, error) {
	return loadFile(path, nil)
}

// loadFile is LoadFile with an injectable environment. A nil environ
// means the process environment.
func loadFile(path string, environ map[string]string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := decodeYAML(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return loadEnvironment(cfg, environ)
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(cfg)
	if errors.Is(err, io.EOF) {
		// Empty file.
		return nil
	}
	return err
}

func loadEnvironment(cfg *Config, environ map[string]string) (*Config, error) {
	options := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, options); err != nil {
		return nil, fmt.Errorf("applying %s* environment: %w", EnvPrefix, err)
	}
	cfg.expandVariables(environ)
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables(environ map[string]string) {
	lookup := os.Getenv
	if environ != nil {
		lookup = func(name string) string { return environ[name] }
	}
	c.IdentityFile = expandVars(c.IdentityFile, lookup)
	c.Watch.StateFile = expandVars(c.Watch.StateFile, lookup)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, lookup func(string) string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := lookup(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks that the configuration can authenticate.
func (c *Config) Validate() error {
	var errs []error

	if c.Site == "" {
		errs = append(errs, fmt.Errorf("site is required (or set %sSITE)", EnvPrefix))
	} else if parsed, err := url.Parse(c.Site); err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("site %q must be an http or https URL", c.Site))
	}

	if c.Email == "" {
		errs = append(errs, fmt.Errorf("email is required (or set %sEMAIL)", EnvPrefix))
	}

	switch {
	case c.APIKey != "" && c.APIKeySealed != "":
		errs = append(errs, fmt.Errorf("api_key and api_key_sealed are mutually exclusive"))
	case c.APIKey == "" && c.APIKeySealed == "":
		errs = append(errs, fmt.Errorf("api_key or api_key_sealed is required (or set %sAPI_KEY)", EnvPrefix))
	case c.APIKeySealed != "" && c.IdentityFile == "":
		errs = append(errs, fmt.Errorf("api_key_sealed requires identity_file"))
	}

	if c.Watch.MaxConsecutiveFailures < 1 {
		errs = append(errs, fmt.Errorf("watch.max_consecutive_failures must be at least 1"))
	}
	if c.Watch.InitialBackoff <= 0 || c.Watch.MaxBackoff < c.Watch.InitialBackoff {
		errs = append(errs, fmt.Errorf("watch backoff must satisfy 0 < initial_backoff <= max_backoff"))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print: the plaintext key is masked
// and the sealed key shortened.
func (c *Config) Redacted() *Config {
	redacted := *c
	if redacted.APIKey != "" {
		redacted.APIKey = "********"
	}
	if len(redacted.APIKeySealed) > 16 {
		redacted.APIKeySealed = redacted.APIKeySealed[:16] + "..."
	}
	return &redacted
}
