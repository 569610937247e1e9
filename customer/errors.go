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

package customer

import (
	"errors"
)

var (
	// ErrCustomerDeleted is when a deleted customer is modified.
	ErrCustomerDeleted = errors.New("customer is deleted")
	// ErrInvalidStatusTransition is when the status can not change as requested.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrReasonRequired is when a status change needs a reason.
	ErrReasonRequired = errors.New("reason is required")
	// ErrInvalidName is when a name does not validate.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidEmail is when an email does not validate.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPhone is when a phone number does not validate.
	ErrInvalidPhone = errors.New("invalid phone")
	// ErrInvalidAddress is when an address does not validate.
	ErrInvalidAddress = errors.New("invalid address")
)

var (
	// ErrUnknownEvent is when an event can not be applied to a customer.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidEventData is when the event data is not of the expected type.
	ErrInvalidEventData = errors.New("invalid event data")
	// ErrNoHistory is when a customer is rebuilt from no events.
	ErrNoHistory = errors.New("no history")
)

var (
	// ErrNotFound is when a customer could not be found.
	ErrNotFound = errors.New("customer not found")
	// ErrConcurrencyConflict is when the customer was changed by someone else
	// since it was loaded.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Error is a business rule violation by a customer operation.
type Error struct {
	// Err is one of the sentinel errors of the package.
	Err error
	// Msg describes the violation.
	Msg string
}

func newError(err error, msg string) *Error {
	return &Error{Err: err, Msg: msg}
}

// Error implements the Error method of the errors.Error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return "customer: " + e.Err.Error()
	}

	return "customer: " + e.Msg
}

// Unwrap implements the errors.Unwrap method.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsDomainError returns true if the error is a business rule violation.
func IsDomainError(err error) bool {
	var e *Error

	return errors.As(err, &e)
}
