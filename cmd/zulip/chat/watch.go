// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/zulip/cmd/zulip/cli"
	"github.com/bureau-foundation/zulip/lib/checkpoint"
	"github.com/bureau-foundation/zulip/lib/render"
	"github.com/bureau-foundation/zulip/zulip"
)

// watchBuffer is the subscription buffer between the pump and the
// printer.
const watchBuffer = 64

// queueCleanupTimeout bounds the DELETE of an unsaved queue on exit.
const queueCleanupTimeout = 5 * time.Second

type watchParams struct {
	cli.SessionConfig
	cli.JSONOutput
	narrowParams
	renderParams
	AllPublicStreams bool   `json:"all_public_streams" flag:"all-public-streams" desc:"receive messages from public streams you are not subscribed to"`
	StateFile        string `json:"state"              flag:"state"              desc:"checkpoint file for resuming the queue (default: watch.state_file setting)"`
	Count            int    `json:"count"              flag:"count"              desc:"exit after this many messages (0: until interrupted)"`
}

// WatchCommand returns the "watch" command, which follows an event
// queue and prints messages as they arrive.
func WatchCommand() *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Print messages as they arrive",
		Description: `Register an event queue for message events matching the narrows and
long-poll it, printing each message as it arrives: rendered in
human mode, one JSON object per line with --json.

With --state (or watch.state_file in the settings), the queue id and
cursor are saved after every poll, and the next run resumes the same
queue so nothing sent in between is missed. The saved queue is only
reused when the account and narrows match. If the server has already
discarded it, a new queue is registered.

Transport failures, malformed responses and rate limits are retried
with exponential backoff (watch.* settings). Press Ctrl-C to stop.`,
		Usage: "zulip watch [flags]",
		Examples: []cli.Example{
			{Description: "Follow one stream", Command: "zulip watch -n stream:ops"},
			{Description: "Resumable JSONL feed for a script", Command: "zulip watch --json --state ~/.cache/zulip/ops.cbor --narrow-file ops.jsonc"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("watch", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q\n\nusage: zulip watch [flags]", args[0])
			}
			if params.Count < 0 {
				return cli.Validation("--count must not be negative")
			}
			logger := params.Logger().With("command", "watch")
			session, err := params.Connect(logger)
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, stop := signalContext()
			defer stop()
			return runWatch(ctx, session, &params, logger)
		},
	}
}

// feed is a running pump plus what is needed to persist and clean up
// its queue.
type feed struct {
	pump         *zulip.Pump
	subscription *zulip.Subscription
	client       *zulip.Client
	stateFile    string
	logger       *slog.Logger
}

// startFeed opens (or resumes) a queue for the narrows and starts a
// pump on it. The caller must call stop.
func startFeed(ctx context.Context, session *cli.Session, narrows []zulip.Narrow, allPublicStreams bool, stateFile string, logger *slog.Logger) (*feed, <-chan error, error) {
	client := session.Client
	encoded, err := zulip.EncodeNarrows(narrows)
	if err != nil {
		return nil, nil, cli.Validation("%w", err)
	}
	want := checkpoint.State{
		Site:             client.Site(),
		Email:            client.Email(),
		Narrow:           encoded,
		AllPublicStreams: allPublicStreams,
	}

	var queue *zulip.Queue
	if stateFile != "" {
		saved, ok, err := checkpoint.Resume(stateFile, want)
		if err != nil {
			return nil, nil, cli.Internal("%w", err).WithHint("Remove it with 'zulip state clear " + stateFile + "'.")
		}
		if ok {
			queue = &zulip.Queue{ID: saved.QueueID, LastEventID: saved.LastEventID}
			logger.Info("resuming event queue", "queue_id", saved.QueueID, "last_event_id", saved.LastEventID, "saved_at", saved.SavedAt)
		}
	}

	save := func(current zulip.Queue) {
		if stateFile == "" {
			return
		}
		state := want
		state.QueueID = current.ID
		state.LastEventID = current.LastEventID
		if err := checkpoint.Write(stateFile, state); err != nil {
			logger.Warn("saving queue checkpoint failed", "path", stateFile, "error", err)
		}
	}

	if queue == nil {
		queue, err = client.RegisterQueue(ctx, allPublicStreams, narrows)
		if err != nil {
			return nil, nil, cli.FromAPIError("registering event queue", err)
		}
		save(*queue)
	}

	watch := session.Config.Watch
	pump, err := zulip.NewPump(client, queue, zulip.PumpConfig{
		Retry: zulip.RetryPolicy{
			MaxConsecutiveFailures: watch.MaxConsecutiveFailures,
			InitialBackoff:         watch.InitialBackoff,
			MaxBackoff:             watch.MaxBackoff,
		},
		Reregister:       true,
		AllPublicStreams: allPublicStreams,
		Narrows:          narrows,
		Checkpoint:       save,
		Logger:           logger,
	})
	if err != nil {
		return nil, nil, cli.Internal("%w", err)
	}

	// With a state file the subscription is unbuffered: the pump then
	// checkpoints a batch only once its last message has been taken,
	// and a reader that stops early leaves the batch to be replayed.
	buffer := watchBuffer
	if stateFile != "" {
		buffer = 0
	}
	f := &feed{
		pump:         pump,
		subscription: pump.Subscribe(buffer),
		client:       client,
		stateFile:    stateFile,
		logger:       logger,
	}
	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()
	return f, done, nil
}

// finish interprets the pump's exit. Cancellation is a normal stop. A
// queue that is not checkpointed is deleted so the server can free it.
func (f *feed) finish(runErr error) error {
	f.subscription.Close()
	if f.stateFile == "" {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), queueCleanupTimeout)
		defer cancel()
		queue := f.pump.Queue()
		if err := f.client.DeleteQueue(cleanupCtx, &queue); err != nil {
			f.logger.Debug("deleting event queue failed", "queue_id", queue.ID, "error", err)
		}
	}
	if runErr == nil || errors.Is(runErr, context.Canceled) {
		return nil
	}
	return cli.FromAPIError("watching", runErr)
}

func runWatch(ctx context.Context, session *cli.Session, params *watchParams, logger *slog.Logger) error {
	narrows, fileAllPublic, err := params.resolve()
	if err != nil {
		return err
	}
	stateFile := params.StateFile
	if stateFile == "" {
		stateFile = session.Config.Watch.StateFile
	}

	pumpCtx, cancelPump := context.WithCancel(ctx)
	defer cancelPump()
	f, done, err := startFeed(pumpCtx, session, narrows, fileAllPublic || params.AllPublicStreams, stateFile, logger)
	if err != nil {
		return err
	}

	encoder := cli.NewJSONLines()
	options := params.options()
	received := 0
	for message := range f.subscription.C {
		if params.OutputJSON {
			if err := encoder.Encode(message); err != nil {
				cancelPump()
				<-done
				f.finish(nil)
				return cli.Internal("writing output: %w", err)
			}
		} else {
			if received > 0 {
				printf("\n")
			}
			printf("%s\n", render.Message(message, options))
		}
		received++
		if params.Count > 0 && received >= params.Count {
			cancelPump()
			break
		}
	}
	return f.finish(<-done)
}
