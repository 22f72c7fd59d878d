// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/lib/config"
	"github.com/bureau-foundation/zulip/lib/sealed"
	"github.com/bureau-foundation/zulip/lib/secret"
	"github.com/bureau-foundation/zulip/zulip"
)

// SessionConfig holds the flags shared by every command that talks to
// a server. Values come from the settings file, then ZULIP_*
// environment variables, then these flags.
//
//	type sendParams struct {
//	    cli.SessionConfig
//	    Topic string `flag:"topic" desc:"destination topic"`
//	}
//
//	// In Run:
//	session, err := params.Connect(logger)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
type SessionConfig struct {
	ConfigPath string
	Site       string
	Email      string
	Verbose    bool
}

// AddFlags registers --config, --site, --email and --verbose.
func (c *SessionConfig) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "settings file (default $"+config.PathEnv+" or ~/.config/zulip/config.yaml)")
	flagSet.StringVar(&c.Site, "site", "", "server base URL (overrides the settings file)")
	flagSet.StringVar(&c.Email, "email", "", "account email (overrides the settings file)")
	flagSet.BoolVarP(&c.Verbose, "verbose", "v", false, "log at debug level")
}

// Logger returns a command logger honoring --verbose.
func (c *SessionConfig) Logger() *slog.Logger {
	return NewCommandLogger(c.Verbose)
}

// Load reads the settings and applies flag overrides. It does not
// validate.
func (c *SessionConfig) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFound("settings file: %w", err).
				WithHint("Create it with 'zulip config init' or pass --config.")
		}
		return nil, Validation("settings: %w", err)
	}
	if c.Site != "" {
		cfg.Site = c.Site
	}
	if c.Email != "" {
		cfg.Email = c.Email
	}
	return cfg, nil
}

// Session is an authenticated client plus the settings it came from.
type Session struct {
	Client *zulip.Client
	Config *config.Config

	apiKey *secret.Buffer
}

// Close releases the API key buffer. The client must not be used
// afterwards.
func (s *Session) Close() error {
	if s.apiKey == nil {
		return nil
	}
	return s.apiKey.Close()
}

// Connect loads and validates the settings, opens the API key (decrypting
// api_key_sealed with the identity file when set) and builds a client.
func (c *SessionConfig) Connect(logger *slog.Logger) (*Session, error) {
	cfg, err := c.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, Validation("settings: %w", err).
			WithHint("Run 'zulip config show' to see the effective settings.")
	}

	apiKey, err := openAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	client, err := zulip.NewClient(zulip.ClientConfig{
		Site:   cfg.Site,
		Email:  cfg.Email,
		APIKey: apiKey,
		Logger: logger,
	})
	if err != nil {
		apiKey.Close()
		return nil, Validation("%w", err)
	}
	return &Session{Client: client, Config: cfg, apiKey: apiKey}, nil
}

func openAPIKey(cfg *config.Config) (*secret.Buffer, error) {
	if cfg.APIKeySealed == "" {
		apiKey, err := secret.NewFromString(cfg.APIKey)
		if err != nil {
			return nil, Internal("protecting api key: %w", err)
		}
		return apiKey, nil
	}

	identity, err := sealed.ReadIdentityFile(cfg.IdentityFile)
	if err != nil {
		return nil, Validation("reading identity file: %w", err)
	}
	defer identity.Close()

	apiKey, err := sealed.Decrypt(cfg.APIKeySealed, identity)
	if err != nil {
		return nil, Validation("decrypting api_key_sealed: %w", err).
			WithHint(fmt.Sprintf("Re-seal the key for %s with 'zulip config seal'.", cfg.IdentityFile))
	}
	return apiKey, nil
}
