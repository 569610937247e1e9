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

// Package commandhandler runs commands on customers. A command loads the
// customer, runs the operation, saves the projection and appends the raised
// events to the event log.
//
// Saving the projection and appending the events are two writes. With an
// outbox the events are staged in the projection transaction and appended
// right after, a failed append is retried by the outbox relay. A failed append
// is returned as a *PartialWriteError, marked as staged with an outbox.
//
// Conflicts are never retried, the caller has to reload and resubmit.
package commandhandler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/aggregatestore"
	"github.com/looplab/eventlog/customer"
)

// Handler handles commands and queries for customers.
type Handler struct {
	newRepo          func() customer.Repository
	store            *aggregatestore.EventStore
	outbox           eventlog.Outbox
	eventSourcedLoad bool
	logger           *zap.Logger
}

// Option is an option setter used to configure creation.
type Option func(*Handler) error

// WithOutbox appends the events through the outbox. The repos must stage
// their commits in the same outbox.
func WithOutbox(o eventlog.Outbox) Option {
	return func(h *Handler) error {
		if o == nil {
			return errors.New("nil outbox")
		}

		h.outbox = o

		return nil
	}
}

// WithEventSourcedLoad loads customers from the event log, using the latest
// snapshot, instead of from the projection.
func WithEventSourcedLoad() Option {
	return func(h *Handler) error {
		h.eventSourcedLoad = true

		return nil
	}
}

// WithLogger sets the logger, the default logs nothing.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) error {
		if l == nil {
			return errors.New("nil logger")
		}

		h.logger = l

		return nil
	}
}

// NewHandler creates a new Handler. newRepo is called once per command to get
// a repo for the unit of work.
func NewHandler(newRepo func() customer.Repository, store *aggregatestore.EventStore, options ...Option) (*Handler, error) {
	if newRepo == nil {
		return nil, ErrNilRepo
	}

	if store == nil {
		return nil, ErrNilEventStore
	}

	h := &Handler{
		newRepo: newRepo,
		store:   store,
		logger:  zap.NewNop(),
	}

	for _, option := range options {
		if err := option(h); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return h, nil
}

// Result is the outcome of a successful command.
type Result struct {
	CustomerID int
	// Version is the version of the customer after the command.
	Version int
	// Events are the events raised by the command, empty if nothing changed.
	Events []eventlog.Event
}

// HandleCommand handles a command. Business rule violations are returned as
// *customer.Error, use Classify to get the kind of any returned error.
func (h *Handler) HandleCommand(ctx context.Context, cmd Command) (Result, error) {
	if cmd == nil {
		return Result{}, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}

	if create, ok := cmd.(Create); ok {
		return h.create(ctx, create)
	}

	id, expectedVersion := cmd.Customer()
	if id <= 0 {
		return Result{}, fmt.Errorf("%w: customer ID must be greater than zero", ErrInvalidCommand)
	}

	r := h.newRepo()

	c, err := h.load(ctx, r, id)
	if err != nil {
		return Result{}, err
	}

	if expectedVersion != 0 && expectedVersion != c.Version() {
		return Result{}, fmt.Errorf("%w: customer %d is at v%d, expected v%d",
			customer.ErrConcurrencyConflict, id, c.Version(), expectedVersion)
	}

	if err := run(c, cmd); err != nil {
		return Result{}, err
	}

	events := c.UncommittedEvents()
	if len(events) == 0 {
		return Result{CustomerID: id, Version: c.Version(), Events: []eventlog.Event{}}, nil
	}

	r.Update(c)

	if err := h.persist(ctx, r, c); err != nil {
		return Result{}, err
	}

	return Result{CustomerID: id, Version: c.Version(), Events: events}, nil
}

func (h *Handler) create(ctx context.Context, cmd Create) (Result, error) {
	// Invalid details must not consume an ID.
	if err := cmd.Details.Validate(); err != nil {
		return Result{}, err
	}

	r := h.newRepo()

	id, err := r.NextID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("could not allocate customer ID: %w", err)
	}

	c, err := customer.CreateWithDetails(id, cmd.Details)
	if err != nil {
		return Result{}, err
	}

	events := c.UncommittedEvents()

	r.Add(c)

	if err := h.persist(ctx, r, c); err != nil {
		return Result{}, err
	}

	return Result{CustomerID: id, Version: c.Version(), Events: events}, nil
}

func (h *Handler) load(ctx context.Context, r customer.Repository, id int) (*customer.Customer, error) {
	if h.eventSourcedLoad {
		return h.store.Load(ctx, id)
	}

	return r.Find(ctx, id)
}

// persist saves the staged customer and appends its uncommitted events.
func (h *Handler) persist(ctx context.Context, r customer.Repository, c *customer.Customer) error {
	versionBefore := c.PersistedVersion()
	events := c.UncommittedEvents()

	if err := r.Save(ctx); err != nil {
		return err
	}

	if h.outbox != nil {
		// The commit was staged by the repo, with the ID of its first event.
		if err := h.outbox.Process(ctx, events[0].EventID()); err != nil {
			h.logger.Warn("events left in outbox",
				zap.Int("customer_id", c.ID()),
				zap.Int("expected_version", versionBefore),
				zap.Error(err))

			return &PartialWriteError{
				Err:             err,
				CustomerID:      c.ID(),
				ExpectedVersion: versionBefore,
				Events:          events,
				Staged:          true,
			}
		}
	} else if err := h.store.AppendEvents(ctx, c.ID(), events, versionBefore); err != nil {
		h.logger.Error("projection saved but events not appended",
			zap.Int("customer_id", c.ID()),
			zap.Int("expected_version", versionBefore),
			zap.Int("num_events", len(events)),
			zap.Error(err))

		return &PartialWriteError{
			Err:             err,
			CustomerID:      c.ID(),
			ExpectedVersion: versionBefore,
			Events:          events,
		}
	}

	c.ClearUncommittedEvents()

	return nil
}

// run runs the operation of the command on the customer.
func run(c *customer.Customer, cmd Command) error {
	switch cmd := cmd.(type) {
	case UpdateName:
		return c.UpdateName(cmd.FirstName, cmd.LastName)
	case ChangeEmail:
		return c.ChangeEmail(cmd.Email)
	case ChangePhone:
		return c.ChangePhone(cmd.CountryCode, cmd.Number)
	case RemovePhone:
		return c.RemovePhone()
	case ChangeAddress:
		return c.ChangeAddress(cmd.Street, cmd.City, cmd.State, cmd.Country, cmd.ZipCode)
	case RemoveAddress:
		return c.RemoveAddress()
	case Verify:
		return c.Verify()
	case ChangeStatus:
		switch cmd.Action {
		case Activate:
			return c.Activate(cmd.Reason)
		case Deactivate:
			return c.Deactivate(cmd.Reason)
		case Suspend:
			return c.Suspend(cmd.Reason)
		default:
			return fmt.Errorf("%w: unknown status action %q", ErrInvalidCommand, cmd.Action)
		}
	case Delete:
		return c.Delete(cmd.Reason)
	default:
		return fmt.Errorf("%w: unknown command type %q", ErrInvalidCommand, cmd.CommandType())
	}
}
