// Copyright (c) 2014 - The Event Horizon authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package outbox holds the relay shared by the outbox implementations. The
// relay appends staged commits to the event log on a cron schedule, in order
// per customer, and retries failed commits with exponential backoff.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/looplab/eventlog"
)

// Defaults of the relay.
const (
	// DefaultSchedule sweeps the outbox every 15 seconds.
	DefaultSchedule    = "*/15 * * * * * *"
	DefaultMaxAttempts = 10
	DefaultMinBackoff  = time.Second
	DefaultMaxBackoff  = 5 * time.Minute
)

// ErrCommitAlreadyStaged is when a commit with the same ID is already staged.
var ErrCommitAlreadyStaged = errors.New("commit already staged")

// StagedCommit is the relay state of a commit in an outbox.
type StagedCommit struct {
	ID              uuid.UUID
	CustomerID      int
	ExpectedVersion int
	// Attempts is the number of failed attempts to append the commit.
	Attempts int
	// RetryAt is when the commit can be retried after a failure.
	RetryAt time.Time
	// Dead is set when the relay has given up on the commit.
	Dead bool
}

// Source is the storage side of an outbox, used by the relay.
type Source interface {
	// Staged returns all staged commits ordered by customer and expected
	// version.
	Staged(ctx context.Context) ([]StagedCommit, error)
	// Process appends a staged commit and removes it.
	Process(ctx context.Context, id uuid.UUID) error
	// Reschedule stores the relay state of a failed commit.
	Reschedule(ctx context.Context, c StagedCommit) error
}

// Relay sweeps an outbox on a schedule until it is closed.
type Relay struct {
	source      Source
	schedule    *cronexpr.Expression
	backoff     *backoff.Backoff
	maxAttempts int
	logger      *zap.Logger
	errCh       chan error
	cctx        context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// Option is an option setter used to configure creation.
type Option func(*Relay) error

// WithSchedule sets the cron expression of the sweeps, with a seconds field
// first and an optional year field last.
func WithSchedule(expr string) Option {
	return func(r *Relay) error {
		schedule, err := cronexpr.Parse(expr)
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", expr, err)
		}

		r.schedule = schedule

		return nil
	}
}

// WithMaxAttempts sets how many times a commit is tried before the relay gives
// up on it.
func WithMaxAttempts(n int) Option {
	return func(r *Relay) error {
		if n < 1 {
			return fmt.Errorf("invalid max attempts: %d", n)
		}

		r.maxAttempts = n

		return nil
	}
}

// WithBackoff sets the delays between retries of a failed commit, doubling
// from min up to max.
func WithBackoff(min, max time.Duration) Option {
	return func(r *Relay) error {
		if min <= 0 || max < min {
			return fmt.Errorf("invalid backoff: %s - %s", min, max)
		}

		r.backoff = &backoff.Backoff{Min: min, Max: max, Factor: 2}

		return nil
	}
}

// WithLogger sets the logger, the default logs nothing.
func WithLogger(l *zap.Logger) Option {
	return func(r *Relay) error {
		if l == nil {
			return errors.New("nil logger")
		}

		r.logger = l

		return nil
	}
}

// NewRelay creates a relay for the source.
func NewRelay(source Source, options ...Option) (*Relay, error) {
	if source == nil {
		return nil, errors.New("missing source")
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Relay{
		source:      source,
		schedule:    cronexpr.MustParse(DefaultSchedule),
		backoff:     &backoff.Backoff{Min: DefaultMinBackoff, Max: DefaultMaxBackoff, Factor: 2},
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
		errCh:       make(chan error, 100),
		cctx:        ctx,
		cancel:      cancel,
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(r); err != nil {
			cancel()

			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return r, nil
}

// Start implements the Start method of the eventlog.Outbox interface.
func (r *Relay) Start() {
	r.wg.Add(1)

	go r.run()
}

// Close implements the Close method of the eventlog.Outbox interface.
func (r *Relay) Close() error {
	r.cancel()
	r.wg.Wait()

	return nil
}

// Errors implements the Errors method of the eventlog.Outbox interface.
func (r *Relay) Errors() <-chan error {
	return r.errCh
}

// Sweep tries to append all staged commits that are due.
func (r *Relay) Sweep(ctx context.Context) error {
	return r.sweep(ctx, time.Now())
}

func (r *Relay) run() {
	defer r.wg.Done()

	for {
		now := time.Now()

		next := r.schedule.Next(now)
		if next.IsZero() {
			r.logger.Warn("outbox schedule has no more runs")

			return
		}

		// Wait until next run or cancelled.
		select {
		case <-time.After(next.Sub(now)):
		case <-r.cctx.Done():
			return
		}

		if err := r.Sweep(r.cctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			r.sendError(&eventlog.OutboxError{Err: err, Ctx: r.cctx})
		}
	}
}

// The current time is passed to let all commits of a sweep use the same time.
func (r *Relay) sweep(ctx context.Context, now time.Time) error {
	staged, err := r.source.Staged(ctx)
	if err != nil {
		return fmt.Errorf("could not find staged commits: %w", err)
	}

	// Customers with a commit that is not appended yet, their later commits
	// have to wait.
	blocked := map[int]bool{}

	for _, c := range staged {
		if blocked[c.CustomerID] {
			continue
		}

		if c.Dead || c.RetryAt.After(now) {
			blocked[c.CustomerID] = true

			continue
		}

		err := r.source.Process(ctx, c.ID)
		if err == nil {
			r.logger.Debug("commit relayed",
				zap.Stringer("commit_id", c.ID),
				zap.Int("customer_id", c.CustomerID),
				zap.Int("expected_version", c.ExpectedVersion))

			continue
		}

		if errors.Is(err, context.Canceled) {
			return err
		}

		// Already processed by someone else.
		if errors.Is(err, eventlog.ErrCommitNotFound) {
			continue
		}

		blocked[c.CustomerID] = true
		c.Attempts++

		if c.Attempts >= r.maxAttempts {
			c.Dead = true
			r.logger.Error("giving up on commit",
				zap.Stringer("commit_id", c.ID),
				zap.Int("customer_id", c.CustomerID),
				zap.Int("attempts", c.Attempts),
				zap.Error(err))
		} else {
			c.RetryAt = now.Add(r.backoff.ForAttempt(float64(c.Attempts - 1)))
			r.logger.Warn("could not relay commit",
				zap.Stringer("commit_id", c.ID),
				zap.Int("customer_id", c.CustomerID),
				zap.Int("attempts", c.Attempts),
				zap.Time("retry_at", c.RetryAt),
				zap.Error(err))
		}

		if err := r.source.Reschedule(ctx, c); err != nil {
			r.sendError(&eventlog.OutboxError{
				Err: fmt.Errorf("could not reschedule commit %s: %w", c.ID, err),
				Ctx: ctx,
			})
		}

		var outboxErr *eventlog.OutboxError
		if !errors.As(err, &outboxErr) {
			err = &eventlog.OutboxError{Err: err, Ctx: ctx}
		}

		r.sendError(err)
	}

	return nil
}

func (r *Relay) sendError(err error) {
	select {
	case r.errCh <- err:
	default:
		r.logger.Error("missed error in outbox relay", zap.Error(err))
	}
}
