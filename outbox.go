// Copyright (c) 2021 - The Event Horizon authors.
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

package eventlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Commit is a batch of events for one customer, raised by a single business
// operation and appended to the event log as a unit.
type Commit struct {
	// ID is the ID of the first event in the commit.
	ID              uuid.UUID
	CustomerID      int
	ExpectedVersion int
	Events          []Event
}

// ErrEmptyCommit is when a commit has no events.
var ErrEmptyCommit = errors.New("empty commit")

// NewCommit creates a commit for events of one customer.
func NewCommit(expectedVersion int, events []Event) (Commit, error) {
	if len(events) == 0 {
		return Commit{}, ErrEmptyCommit
	}

	id := events[0].CustomerID()
	for _, e := range events {
		if e.CustomerID() != id {
			return Commit{}, ErrMismatchedEventCustomerIDs
		}
	}

	return Commit{
		ID:              events[0].EventID(),
		CustomerID:      id,
		ExpectedVersion: expectedVersion,
		Events:          events,
	}, nil
}

// String implements the Stringer interface.
func (c Commit) String() string {
	return fmt.Sprintf("commit %s (customer %d, from v%d, %d events)",
		c.ID, c.CustomerID, c.ExpectedVersion, len(c.Events))
}

// Outbox stages commits atomically with the current-state projection and
// appends them to the event log. Staging must use the context of the
// projection transaction, which is often provided by the storage adapter.
type Outbox interface {
	// Stage stores commits in the outbox, in the transaction carried by ctx if
	// the outbox supports one.
	Stage(ctx context.Context, commits ...Commit) error

	// Process appends a staged commit to the event log and removes it from
	// the outbox. A commit that is already in the log is just removed.
	Process(ctx context.Context, id uuid.UUID) error

	// Start starts relaying pending commits until Close() is called.
	Start()

	// Close stops the relay and waits for it to finish.
	Close() error

	// Errors returns an error channel where async relay errors are sent.
	Errors() <-chan error
}

// ErrCommitNotFound is when a commit is not staged in the outbox.
var ErrCommitNotFound = errors.New("commit not found")

// OutboxError is an error in the outbox.
type OutboxError struct {
	// Err is the error.
	Err error
	// Ctx is the context used when the error happened.
	Ctx context.Context
	// Commit is the commit handled when the error happened.
	Commit *Commit
}

// Error implements the Error method of the errors.Error interface.
func (e *OutboxError) Error() string {
	str := "outbox: "

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.Commit != nil {
		str += " [" + e.Commit.String() + "]"
	}

	return str
}

// Unwrap implements the errors.Unwrap method.
func (e *OutboxError) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors Unwrap method.
func (e *OutboxError) Cause() error {
	return e.Unwrap()
}

// Appender appends events to the log of a customer, as done by the customer
// facing event store.
type Appender interface {
	AppendEvents(ctx context.Context, customerID int, events []Event, expectedVersion int) error
	EventsFromVersion(ctx context.Context, customerID int, fromVersion int) ([]Event, error)
}

// AppendCommit appends a commit using the appender. It is idempotent: if the
// append conflicts but the first event of the commit is already in the log the
// commit counts as appended.
func AppendCommit(ctx context.Context, a Appender, c Commit) error {
	err := a.AppendEvents(ctx, c.CustomerID, c.Events, c.ExpectedVersion)
	if err == nil || !errors.Is(err, ErrEventConflictFromOtherSave) {
		return err
	}

	events, loadErr := a.EventsFromVersion(ctx, c.CustomerID, c.ExpectedVersion)
	if loadErr != nil {
		return err
	}

	for _, e := range events {
		if e.EventID() == c.ID {
			return nil
		}
	}

	return err
}
