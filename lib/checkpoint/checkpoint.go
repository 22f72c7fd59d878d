// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/zulip/lib/codec"
)

// Version is the current checkpoint format. Files with another version
// are ignored by Resume.
const Version = 1

// State is one saved queue.
type State struct {
	Version int `cbor:"1,keyasint"`

	// Site and Email identify the account the queue belongs to.
	Site  string `cbor:"2,keyasint"`
	Email string `cbor:"3,keyasint"`

	// Narrow is the encoded narrow list the queue was registered with
	// ("[]" for none).
	Narrow           string `cbor:"4,keyasint"`
	AllPublicStreams bool   `cbor:"5,keyasint"`

	QueueID     string `cbor:"6,keyasint"`
	LastEventID int64  `cbor:"7,keyasint"`

	// SavedAt is when the file was written. Servers garbage-collect
	// idle queues after roughly ten minutes, so a much older checkpoint
	// is likely to be rejected on the first poll.
	SavedAt time.Time `cbor:"8,keyasint"`
}

// Matches reports whether s was saved for the same registration
// parameters as want. Queue id, cursor and timestamp are not compared.
func (s State) Matches(want State) bool {
	return s.Version == Version &&
		s.Site == want.Site &&
		s.Email == want.Email &&
		s.Narrow == want.Narrow &&
		s.AllPublicStreams == want.AllPublicStreams
}

// Write atomically writes state to path with mode 0600. Version is
// set, and SavedAt defaults to now. The parent directory must exist.
func Write(path string, state State) error {
	state.Version = Version
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary checkpoint file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary checkpoint file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming checkpoint file into place: %w", err)
	}

	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Read reads a checkpoint file. A missing file returns an error
// wrapping fs.ErrNotExist.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing checkpoint file %s: %w", path, err)
	}
	return state, nil
}

// Resume reads path and returns the saved state if it matches want.
// It returns false, with no error, when the file does not exist or was
// saved for different registration parameters or an older format.
// Unreadable or corrupt files are errors so that the caller can tell
// "nothing to resume" from "resume state lost".
func Resume(path string, want State) (State, bool, error) {
	state, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	if !state.Matches(want) || state.QueueID == "" {
		return State{}, false, nil
	}
	return state, true, nil
}

// Clear removes a checkpoint file. Idempotent.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing checkpoint file: %w", err)
	}
	return nil
}
