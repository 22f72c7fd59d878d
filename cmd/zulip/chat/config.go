// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/config"
	"github.com/bureau-foundation/zulip/lib/sealed"
	"github.com/bureau-foundation/zulip/lib/secret"
)

// ConfigCommand returns the "config" command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Summary: "Manage the settings file and sealed credentials",
		Description: `The settings file (YAML) names the server, the account and its API
key. Every setting can be overridden by a ZULIP_* environment variable,
e.g. ZULIP_SITE or ZULIP_WATCH_MAX_BACKOFF.

Keep the key out of the file in plaintext by sealing it: generate an
identity with "zulip config keygen", then put the output of
"zulip config seal" in the file as api_key_sealed.`,
		Subcommands: []*cli.Command{
			configShowCommand(),
			configPathCommand(),
			configInitCommand(),
			configKeygenCommand(),
			configSealCommand(),
		},
	}
}

type configShowParams struct {
	cli.SessionConfig
	cli.JSONOutput
}

func configShowCommand() *cli.Command {
	var params configShowParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print the effective settings",
		Description: `Print the settings after the file, the environment and --site/--email
are applied, with the API key masked. Problems that would stop other
commands are listed after the settings.`,
		Usage: "zulip config show [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()
			if done, err := params.EmitJSON(redacted); done {
				return err
			}
			data, err := yaml.Marshal(redacted)
			if err != nil {
				return cli.Internal("encoding settings: %w", err)
			}
			printf("%s", data)
			if err := cfg.Validate(); err != nil {
				printf("\n# problems:\n")
				for _, line := range strings.Split(err.Error(), "\n") {
					printf("#   %s\n", line)
				}
			}
			return nil
		},
	}
}

type configPathParams struct {
	ConfigPath string `json:"-" flag:"config" desc:"settings file"`
}

func configPathCommand() *cli.Command {
	var params configPathParams

	return &cli.Command{
		Name:    "path",
		Summary: "Print the settings file location",
		Usage:   "zulip config path",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("path", &params)
		},
		Run: func(args []string) error {
			path, _, err := config.Path(params.ConfigPath)
			if err != nil {
				return cli.Internal("%w", err)
			}
			printf("%s\n", path)
			return nil
		},
	}
}

const configTemplate = `# Settings for the zulip CLI. Every key can be overridden with a
# ZULIP_* environment variable (ZULIP_SITE, ZULIP_WATCH_STATE_FILE, ...).

site: %s
email: %s

# Either the plaintext key or, preferably, the key sealed with
# "zulip config seal" plus the identity that opens it.
api_key: ""
# api_key_sealed: ""
# identity_file: ${HOME}/.config/zulip/identity.txt

watch:
  # Resume "zulip watch" across runs from this checkpoint.
  # state_file: ${HOME}/.cache/zulip/watch.cbor
  max_consecutive_failures: 5
  initial_backoff: 1s
  max_backoff: 30s
`

type configInitParams struct {
	ConfigPath string `json:"-"     flag:"config" desc:"settings file to create"`
	Site       string `json:"site"  flag:"site"   desc:"server base URL" default:"https://chat.example.com"`
	Email      string `json:"email" flag:"email"  desc:"account email" default:"bot@example.com"`
	Force      bool   `json:"force" flag:"force"  desc:"overwrite an existing file"`
}

func configInitCommand() *cli.Command {
	var params configInitParams

	return &cli.Command{
		Name:    "init",
		Summary: "Write a settings file template",
		Usage:   "zulip config init [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("init", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			path, _, err := config.Path(params.ConfigPath)
			if err != nil {
				return cli.Internal("%w", err)
			}
			content := fmt.Sprintf(configTemplate, params.Site, params.Email)
			if err := writePrivateFile(path, []byte(content), params.Force); err != nil {
				return err
			}
			printf("wrote %s\n", path)
			return nil
		},
	}
}

type configKeygenParams struct {
	cli.JSONOutput
	Output string `json:"output" flag:"output,o" desc:"identity file to create (default: identity.txt next to the settings file)"`
	Force  bool   `json:"force"  flag:"force"    desc:"overwrite an existing file"`
}

// keygenResult is the JSON output of config keygen.
type keygenResult struct {
	Path      string `json:"path"`
	PublicKey string `json:"public_key"`
}

func configKeygenCommand() *cli.Command {
	var params configKeygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age identity for sealing the API key",
		Description: `Generate an age x25519 identity, write it to a 0600 file and print its
public key. Point identity_file at the file.`,
		Usage: "zulip config keygen [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			path := params.Output
			if path == "" {
				settings, err := config.DefaultPath()
				if err != nil {
					return cli.Internal("%w", err)
				}
				path = filepath.Join(filepath.Dir(settings), "identity.txt")
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return cli.Internal("%w", err)
			}
			defer keypair.Close()

			content := fmt.Appendf(nil, "# created: %s\n# public key: %s\n%s\n",
				time.Now().UTC().Format(time.RFC3339), keypair.PublicKey, keypair.PrivateKey.Bytes())
			err = writePrivateFile(path, content, params.Force)
			secret.Zero(content)
			if err != nil {
				return err
			}

			result := keygenResult{Path: path, PublicKey: keypair.PublicKey}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			printf("wrote %s\npublic key: %s\n", path, keypair.PublicKey)
			return nil
		},
	}
}

type configSealParams struct {
	cli.SessionConfig
	Recipients []string `json:"recipients" flag:"recipient,r" desc:"age public key to seal to (repeatable; default: the identity_file's key)"`
	KeyFile    string   `json:"key_file"   flag:"key-file"    desc:"read the API key from this file, - for stdin" default:"-"`
}

func configSealCommand() *cli.Command {
	var params configSealParams

	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt an API key for api_key_sealed",
		Description: `Read an API key (prompting when stdin is a terminal) and print it
encrypted to the recipients as an api_key_sealed line for the settings
file. Without --recipient, the key is sealed to the identity in the
settings' identity_file.`,
		Usage: "zulip config seal [flags]",
		Examples: []cli.Example{
			{Description: "Seal to the configured identity", Command: "zulip config seal >> ~/.config/zulip/config.yaml"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("seal", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			recipients, err := sealRecipients(&params)
			if err != nil {
				return err
			}
			apiKey, err := readAPIKey(params.KeyFile)
			if err != nil {
				return err
			}
			defer apiKey.Close()

			ciphertext, err := sealed.Encrypt(apiKey.Bytes(), recipients)
			if err != nil {
				return cli.Internal("%w", err)
			}
			printf("api_key_sealed: %s\n", ciphertext)
			return nil
		},
	}
}

func sealRecipients(params *configSealParams) ([]string, error) {
	if len(params.Recipients) > 0 {
		for _, recipient := range params.Recipients {
			if err := sealed.ParsePublicKey(recipient); err != nil {
				return nil, cli.Validation("--recipient %q: %w", recipient, err)
			}
		}
		return params.Recipients, nil
	}
	cfg, err := params.Load()
	if err != nil {
		return nil, err
	}
	if cfg.IdentityFile == "" {
		return nil, cli.Validation("no --recipient given and identity_file is not set").
			WithHint("Generate one with 'zulip config keygen'.")
	}
	identity, err := sealed.ReadIdentityFile(cfg.IdentityFile)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	defer identity.Close()
	recipient, err := sealed.RecipientOf(identity)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	return []string{recipient}, nil
}

// readAPIKey reads from path, from stdin, or from a no-echo prompt
// when stdin is a terminal.
func readAPIKey(path string) (*secret.Buffer, error) {
	if path != "-" {
		apiKey, err := secret.ReadFromPath(path)
		if err != nil {
			return nil, cli.Validation("reading API key: %w", err)
		}
		return apiKey, nil
	}
	if file, ok := stdin.(*os.File); ok && cli.IsTerminal(file) {
		fmt.Fprint(os.Stderr, "API key: ")
		data, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, cli.Internal("reading API key: %w", err)
		}
		defer secret.Zero(data)
		apiKey, err := secret.ReadFrom(bytes.NewReader(data))
		if err != nil {
			return nil, cli.Validation("reading API key: %w", err)
		}
		return apiKey, nil
	}
	apiKey, err := secret.ReadFrom(stdin)
	if err != nil {
		return nil, cli.Validation("reading API key: %w", err)
	}
	return apiKey, nil
}

// writePrivateFile creates path (and its directory) with mode 0600,
// refusing to replace an existing file unless force is set.
func writePrivateFile(path string, data []byte, force bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return cli.Internal("%w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return cli.Validation("%s already exists", path).WithHint("Pass --force to overwrite it.")
	}
	if err != nil {
		return cli.Internal("%w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return cli.Internal("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return cli.Internal("writing %s: %w", path, err)
	}
	return nil
}
