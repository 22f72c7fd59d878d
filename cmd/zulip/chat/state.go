// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/checkpoint"
	"github.com/bureau-foundation/zulip/lib/codec"
	"github.com/bureau-foundation/zulip/lib/config"
)

// StateCommand returns the "state" command group for watch checkpoint
// files.
func StateCommand() *cli.Command {
	return &cli.Command{
		Name:    "state",
		Summary: "Inspect or remove watch checkpoints",
		Description: `A checkpoint file holds the event queue id and cursor that "zulip watch
--state" resumes from. Without a path, these commands use the
watch.state_file setting.`,
		Subcommands: []*cli.Command{
			stateShowCommand(),
			stateClearCommand(),
		},
	}
}

type stateParams struct {
	cli.JSONOutput
	ConfigPath string `json:"-" flag:"config" desc:"settings file (default: $ZULIP_CONFIG or ~/.config/zulip/config.yaml)"`
}

// statePath returns args[0], or the configured state file.
func (p *stateParams) statePath(args []string, usage string) (string, error) {
	if len(args) > 1 {
		return "", cli.Validation("expected at most 1 argument, got %d\n\nusage: %s", len(args), usage)
	}
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return "", cli.Validation("%w", err)
	}
	if cfg.Watch.StateFile == "" {
		return "", cli.Validation("no checkpoint path given and watch.state_file is not set\n\nusage: %s", usage)
	}
	return cfg.Watch.StateFile, nil
}

// stateView is the JSON output of state show.
type stateView struct {
	Path             string    `json:"path"`
	Version          int       `json:"version"`
	Site             string    `json:"site"`
	Email            string    `json:"email"`
	Narrow           string    `json:"narrow"`
	AllPublicStreams bool      `json:"all_public_streams"`
	QueueID          string    `json:"queue_id"`
	LastEventID      int64     `json:"last_event_id"`
	SavedAt          time.Time `json:"saved_at"`
}

type stateShowParams struct {
	stateParams
	Raw bool `json:"raw" flag:"raw" desc:"print the file in CBOR diagnostic notation"`
}

func stateShowCommand() *cli.Command {
	var params stateShowParams
	const usage = "zulip state show [flags] [path]"

	return &cli.Command{
		Name:    "show",
		Summary: "Print a checkpoint",
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(args []string) error {
			path, err := params.statePath(args, usage)
			if err != nil {
				return err
			}
			if params.Raw {
				data, err := os.ReadFile(path)
				if err != nil {
					return stateFileError(path, err)
				}
				diagnostic, err := codec.Diagnose(data)
				if err != nil {
					return cli.Validation("%s: %w", path, err)
				}
				printf("%s\n", diagnostic)
				return nil
			}

			state, err := checkpoint.Read(path)
			if err != nil {
				return stateFileError(path, err)
			}
			view := stateView{
				Path:             path,
				Version:          state.Version,
				Site:             state.Site,
				Email:            state.Email,
				Narrow:           state.Narrow,
				AllPublicStreams: state.AllPublicStreams,
				QueueID:          state.QueueID,
				LastEventID:      state.LastEventID,
				SavedAt:          state.SavedAt,
			}
			if done, err := params.EmitJSON(view); done {
				return err
			}
			printf("path:          %s\n", view.Path)
			printf("account:       %s on %s\n", view.Email, view.Site)
			printf("narrow:        %s\n", view.Narrow)
			if view.AllPublicStreams {
				printf("public streams: all\n")
			}
			printf("queue:         %s\n", view.QueueID)
			printf("last event:    %d\n", view.LastEventID)
			printf("saved:         %s (%s ago)\n", view.SavedAt.Local().Format(time.RFC3339), time.Since(view.SavedAt).Round(time.Second))
			return nil
		},
	}
}

func stateClearCommand() *cli.Command {
	var params stateParams
	const usage = "zulip state clear [flags] [path]"

	return &cli.Command{
		Name:    "clear",
		Summary: "Delete a checkpoint",
		Description: `Delete a checkpoint so the next "zulip watch" registers a new queue.
Clearing a missing file is not an error.`,
		Usage: usage,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("clear", &params)
		},
		Run: func(args []string) error {
			path, err := params.statePath(args, usage)
			if err != nil {
				return err
			}
			if err := checkpoint.Clear(path); err != nil {
				return cli.Internal("%w", err)
			}
			printf("cleared %s\n", path)
			return nil
		},
	}
}

func stateFileError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return cli.NotFound("checkpoint %s does not exist", path)
	}
	return cli.Validation("%w", err)
}
