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

package commandhandler

import (
	"errors"
	"fmt"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

var (
	// ErrNilRepo is when a handler is created without a repo factory.
	ErrNilRepo = errors.New("repo factory is nil")
	// ErrNilEventStore is when a handler is created without an event store.
	ErrNilEventStore = errors.New("event store is nil")
	// ErrInvalidCommand is when a command is malformed.
	ErrInvalidCommand = errors.New("invalid command")
)

// PartialWriteError is when the projection of a customer was saved but its
// events could not be appended to the event log. The projection is then ahead
// of the log. Staged events are kept in the outbox and appended by the relay,
// otherwise they must be appended or the projection rebuilt.
type PartialWriteError struct {
	// Err is the error from the event store.
	Err error
	// CustomerID of the customer.
	CustomerID int
	// ExpectedVersion is the version the events should be appended after.
	ExpectedVersion int
	// Events are the events that were not appended.
	Events []eventlog.Event
	// Staged is set when the events are in the outbox.
	Staged bool
}

// Error implements the Error method of the errors.Error interface.
func (e *PartialWriteError) Error() string {
	if e.Staged {
		return fmt.Sprintf("append pending: customer %d saved and %d events after v%d left in outbox: %s",
			e.CustomerID, len(e.Events), e.ExpectedVersion, e.Err)
	}

	return fmt.Sprintf("partial write: customer %d saved but %d events after v%d not appended: %s",
		e.CustomerID, len(e.Events), e.ExpectedVersion, e.Err)
}

// Unwrap implements the errors.Unwrap method.
func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// ErrorKind is the kind of failure of a command.
type ErrorKind int

const (
	// KindNone is no error.
	KindNone ErrorKind = iota
	// KindBusinessRule is a rejected command, for example an invalid status
	// transition or input.
	KindBusinessRule
	// KindConflict is a concurrent change of the customer, the caller should
	// reload and retry.
	KindConflict
	// KindNotFound is an unknown customer.
	KindNotFound
	// KindPartialWrite is a saved projection with events missing in the log.
	KindPartialWrite
	// KindAppendPending is a saved projection with its events staged in the
	// outbox, the relay will append them.
	KindAppendPending
	// KindInternal is any other failure.
	KindInternal
)

// String returns the string representation of an error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBusinessRule:
		return "business_rule"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPartialWrite:
		return "partial_write"
	case KindAppendPending:
		return "append_pending"
	default:
		return "internal"
	}
}

// Classify returns the kind of a command error.
func Classify(err error) ErrorKind {
	var partialWriteErr *PartialWriteError

	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &partialWriteErr):
		if partialWriteErr.Staged {
			return KindAppendPending
		}

		return KindPartialWrite
	case customer.IsDomainError(err), errors.Is(err, ErrInvalidCommand):
		return KindBusinessRule
	case errors.Is(err, customer.ErrConcurrencyConflict),
		errors.Is(err, eventlog.ErrEventConflictFromOtherSave):
		return KindConflict
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, eventlog.ErrCustomerNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
