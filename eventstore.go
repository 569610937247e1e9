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

package eventlog

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// EventStore is an interface for an event sourcing event store holding the
// event log of customers.
type EventStore interface {
	// Save appends all events to the log of one customer. The current version
	// of the customer must equal expectedVersion, otherwise
	// ErrEventConflictFromOtherSave is returned and nothing is stored.
	Save(ctx context.Context, events []Event, expectedVersion int) error

	// Load loads all events for the customer from the store, ordered by
	// version and sequence. Returns ErrCustomerNotFound if there are none.
	Load(ctx context.Context, customerID int) ([]Event, error)

	// LoadFrom loads all events with a version greater than the given version.
	// Returns ErrCustomerNotFound if the customer has no events at all.
	LoadFrom(ctx context.Context, customerID int, version int) ([]Event, error)

	// CurrentVersion returns the highest stored version of the customer, 0 if
	// there are no events.
	CurrentVersion(ctx context.Context, customerID int) (int, error)

	// Close closes the EventStore.
	Close() error
}

var (
	// ErrMissingEvents is when there is no events to be saved.
	ErrMissingEvents = errors.New("missing events")
	// ErrMismatchedEventCustomerIDs is when events are for different customers.
	ErrMismatchedEventCustomerIDs = errors.New("mismatched event customer IDs")
	// ErrIncorrectEventVersion is when an event is for an other version of the customer.
	ErrIncorrectEventVersion = errors.New("mismatching event version")
	// ErrIncorrectEventSequence is when an event does not continue the sequence of the customer.
	ErrIncorrectEventSequence = errors.New("mismatching event sequence")
	// ErrEventConflictFromOtherSave is when another save has changed the
	// customer after it was loaded.
	ErrEventConflictFromOtherSave = errors.New("event conflict from other save")
	// ErrCustomerNotFound is when no events exist for a customer.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCouldNotSaveEvents is when events could not be stored.
	ErrCouldNotSaveEvents = errors.New("could not save events")
	// ErrCouldNotLoadEvents is when events could not be loaded.
	ErrCouldNotLoadEvents = errors.New("could not load events")
	// ErrCouldNotUnmarshalEvent is when a stored event could not be decoded.
	ErrCouldNotUnmarshalEvent = errors.New("could not unmarshal event")
	// ErrSnapshotsNotSupported is when a snapshot is saved to a store without
	// snapshot support.
	ErrSnapshotsNotSupported = errors.New("snapshots not supported")
)

// EventStoreOperation is the operation done when an error happened.
type EventStoreOperation string

const (
	// Errors during loading events.
	EventStoreOpLoad = EventStoreOperation("load")
	// Errors during saving events.
	EventStoreOpSave = EventStoreOperation("save")
	// Errors during reading the current version.
	EventStoreOpVersion = EventStoreOperation("version")
	// Errors during loading a snapshot.
	EventStoreOpLoadSnapshot = EventStoreOperation("load_snapshot")
	// Errors during saving a snapshot.
	EventStoreOpSaveSnapshot = EventStoreOperation("save_snapshot")
)

// EventStoreError is an error in the event store.
type EventStoreError struct {
	// Err is the error.
	Err error
	// BaseErr is an optional underlying error, for example from the DB driver.
	BaseErr error
	// Op is the operation for the error.
	Op EventStoreOperation
	// CustomerID of related operation.
	CustomerID int
	// Version of related operation.
	Version int
	// Events of the related operation.
	Events []Event
}

// Error implements the Error method of the errors.Error interface.
func (e *EventStoreError) Error() string {
	str := "event store: "

	if e.Op != "" {
		str += string(e.Op) + ": "
	}

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.BaseErr != nil {
		str += ": " + e.BaseErr.Error()
	}

	if e.CustomerID != 0 {
		str += ", customer " + strconv.Itoa(e.CustomerID)
		if e.Version != 0 {
			str += " (v" + strconv.Itoa(e.Version) + ")"
		}
	}

	if len(e.Events) > 0 {
		var es []string
		for _, ev := range e.Events {
			if ev != nil {
				es = append(es, ev.String())
			} else {
				es = append(es, "nil event")
			}
		}

		str += " [" + strings.Join(es, ", ") + "]"
	}

	return str
}

// Unwrap implements the errors.Unwrap method.
func (e *EventStoreError) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors Unwrap method.
func (e *EventStoreError) Cause() error {
	return e.Unwrap()
}

// Is matches on both the error and the base error, so that callers can test
// for driver errors as well as store errors.
func (e *EventStoreError) Is(target error) bool {
	return e.BaseErr != nil && errors.Is(e.BaseErr, target)
}
