// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/zulip/lib/clock"
)

// Poller is the subset of *Client a Pump drives.
type Poller interface {
	RegisterQueue(ctx context.Context, allPublicStreams bool, narrows []Narrow) (*Queue, error)
	Poll(ctx context.Context, queue *Queue) ([]Message, error)
	CloseIdleConnections()
}

// RetryPolicy controls how a Pump reacts to polls that fail without a
// server answer (transport failures, malformed responses) and to
// rate-limit rejections.
type RetryPolicy struct {
	// MaxConsecutiveFailures is the number of back-to-back failed polls
	// tolerated before Run gives up. Zero means 5.
	MaxConsecutiveFailures int
	// InitialBackoff is the wait after the first failure. It doubles
	// on every consecutive failure up to MaxBackoff. Zero means 1s.
	InitialBackoff time.Duration
	// MaxBackoff caps the wait. Zero means 30s.
	MaxBackoff time.Duration
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxConsecutiveFailures <= 0 {
		r.MaxConsecutiveFailures = 5
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = time.Second
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = 30 * time.Second
	}
	if r.MaxBackoff < r.InitialBackoff {
		r.MaxBackoff = r.InitialBackoff
	}
	return r
}

// backoff returns the wait before retry number attempt (1-based).
func (r RetryPolicy) backoff(attempt int) time.Duration {
	wait := r.InitialBackoff
	for i := 1; i < attempt && wait < r.MaxBackoff; i++ {
		wait *= 2
	}
	return min(wait, r.MaxBackoff)
}

// PumpConfig configures a Pump.
type PumpConfig struct {
	Retry RetryPolicy

	// Reregister makes the pump replace an expired queue with a fresh
	// registration using AllPublicStreams and Narrows, then continue.
	// Messages sent while no queue existed are not recovered. Without
	// Reregister, an expired queue stops Run.
	Reregister       bool
	AllPublicStreams bool
	Narrows          []Narrow

	// Checkpoint, if set, is called from the Run goroutine with a copy
	// of the queue every time its id or cursor changes, including after
	// a rejected poll that still advanced the cursor. A batch's cursor
	// is reported only after every message in it has been handed to
	// every subscriber.
	Checkpoint func(Queue)

	// Clock drives backoff waits. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Pump is the single driver of one event queue. It polls sequentially
// and delivers every message, in order, to each subscriber. Use it when
// several consumers need the same feed: one queue per consumer would
// deliver the same events several times.
type Pump struct {
	client Poller
	queue  *Queue
	config PumpConfig
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	running     bool
	finished    bool
}

// Subscription receives the messages a Pump delivers. Read from C
// until it is closed, which happens when Run returns.
type Subscription struct {
	C <-chan Message

	pump      *Pump
	messages  chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewPump creates a pump that drives queue. The pump owns queue from
// now on; nothing else may poll it.
func NewPump(client Poller, queue *Queue, config PumpConfig) (*Pump, error) {
	if client == nil {
		return nil, fmt.Errorf("zulip: pump requires a client")
	}
	if queue == nil || queue.ID == "" {
		return nil, fmt.Errorf("zulip: pump requires a registered queue")
	}
	config.Retry = config.Retry.withDefaults()

	pumpClock := config.Clock
	if pumpClock == nil {
		pumpClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pump{
		client:      client,
		queue:       queue,
		config:      config,
		clock:       pumpClock,
		logger:      logger,
		subscribers: make(map[*Subscription]struct{}),
	}, nil
}

// Subscribe registers a new subscriber whose channel holds up to buffer
// undelivered messages. Delivery blocks on a full subscriber, so a slow
// subscriber slows every other one; size buffer for the slowest reader.
// Messages delivered before Subscribe returns are not replayed.
// Subscribing after Run has returned yields an already-closed channel.
func (p *Pump) Subscribe(buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	messages := make(chan Message, buffer)
	subscription := &Subscription{
		C:        messages,
		pump:     p,
		messages: messages,
		done:     make(chan struct{}),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		close(messages)
		return subscription
	}
	p.subscribers[subscription] = struct{}{}
	return subscription
}

// Close detaches the subscription. No further messages are sent on C,
// and a message the pump was blocked delivering to it is dropped for
// this subscriber only. C itself is left open. Close is idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.pump.mu.Lock()
		delete(s.pump.subscribers, s)
		s.pump.mu.Unlock()
		close(s.done)
	})
}

// Queue returns a copy of the queue handle. Only call it while Run is
// not executing; use PumpConfig.Checkpoint to observe progress live.
func (p *Pump) Queue() Queue {
	return *p.queue
}

// Run polls until ctx is cancelled or an unrecoverable error occurs.
// It returns ctx.Err() on cancellation. Every subscriber channel is
// closed when Run returns. Run may only be called once.
func (p *Pump) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return fmt.Errorf("zulip: pump has already run")
	}
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("zulip: pump is already running")
	}
	p.running = true
	p.mu.Unlock()
	defer p.closeAll()

	var failures int
	for {
		before := *p.queue
		messages, err := p.client.Poll(ctx, p.queue)

		if err == nil {
			failures = 0
			// A cancelled delivery leaves the checkpoint at the previous
			// batch so a resumed queue replays the undelivered rest.
			if err := p.deliver(ctx, messages); err != nil {
				return err
			}
			if *p.queue != before {
				p.checkpoint()
			}
			continue
		}

		// A rejected poll carries no messages to deliver, but may still
		// have advanced the cursor.
		if *p.queue != before {
			p.checkpoint()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case IsQueueExpired(err) && p.config.Reregister:
			if err := p.reregister(ctx); err != nil {
				return err
			}
			failures = 0
			continue

		case IsServerError(err, CodeRateLimitHit), IsTransportError(err), IsProtocolError(err):
			failures++
			if IsTransportError(err) {
				// A failed long poll often leaves a dead connection in
				// the pool. Drop idle connections so the retry dials.
				p.client.CloseIdleConnections()
			}
			if failures > p.config.Retry.MaxConsecutiveFailures {
				return fmt.Errorf("zulip: poll failed %d consecutive times on queue %s: %w", failures, p.queue.ID, err)
			}
			wait := p.config.Retry.backoff(failures)
			p.logger.Warn("event poll failed, retrying",
				"queue_id", p.queue.ID,
				"attempt", failures,
				"max_attempts", p.config.Retry.MaxConsecutiveFailures,
				"backoff", wait,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clock.After(wait):
			}

		default:
			return fmt.Errorf("zulip: pump stopped on queue %s: %w", p.queue.ID, err)
		}
	}
}

// reregister replaces an expired queue. A transport failure during
// registration is retried with the pump's backoff policy; a server
// rejection is returned.
func (p *Pump) reregister(ctx context.Context) error {
	expired := p.queue.ID
	var failures int
	for {
		queue, err := p.client.RegisterQueue(ctx, p.config.AllPublicStreams, p.config.Narrows)
		if err == nil {
			p.logger.Info("event queue expired, registered replacement",
				"expired_queue_id", expired,
				"queue_id", queue.ID,
				"last_event_id", queue.LastEventID,
			)
			p.queue = queue
			p.checkpoint()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var serverErr *ServerError
		if errors.As(err, &serverErr) && serverErr.Code != CodeRateLimitHit {
			return fmt.Errorf("zulip: re-registering expired queue %s: %w", expired, err)
		}
		failures++
		if failures > p.config.Retry.MaxConsecutiveFailures {
			return fmt.Errorf("zulip: re-registering expired queue %s failed %d times: %w", expired, failures, err)
		}
		p.client.CloseIdleConnections()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(p.config.Retry.backoff(failures)):
		}
	}
}

func (p *Pump) checkpoint() {
	if p.config.Checkpoint != nil {
		p.config.Checkpoint(*p.queue)
	}
}

// deliver hands each message to every current subscriber in order.
func (p *Pump) deliver(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	p.mu.Lock()
	subscribers := make([]*Subscription, 0, len(p.subscribers))
	for subscription := range p.subscribers {
		subscribers = append(subscribers, subscription)
	}
	p.mu.Unlock()

	for _, message := range messages {
		for _, subscription := range subscribers {
			select {
			case subscription.messages <- message:
			case <-subscription.done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// closeAll closes every subscriber channel. Subscriptions closed
// earlier by their owner have already left the map.
func (p *Pump) closeAll() {
	p.mu.Lock()
	subscribers := p.subscribers
	p.subscribers = make(map[*Subscription]struct{})
	p.finished = true
	p.mu.Unlock()
	for subscription := range subscribers {
		subscription.closeOnce.Do(func() { close(subscription.done) })
		close(subscription.messages)
	}
}
