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

// Package customer contains the event sourced Customer aggregate, its value
// types and domain events.
package customer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/looplab/eventlog"
)

// TimeNow is a mockable version of time.Now.
var TimeNow = time.Now

// Customer is the event sourced customer aggregate. All changes are done by
// raising events which are applied to the state and kept as uncommitted
// events until they are stored.
type Customer struct {
	id               int
	version          int
	sequence         int
	persistedVersion int

	name    Name
	email   Email
	phone   *Phone
	address *Address
	status  Status

	createdAt  time.Time
	updatedAt  time.Time
	verifiedAt time.Time
	deletedAt  time.Time

	events []eventlog.Event
}

// Details are the optional details used by CreateWithDetails. Phone and
// address are only set when all their required parts are given.
type Details struct {
	FirstName string
	LastName  string
	Email     string

	PhoneCountryCode string
	PhoneNumber      string

	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

// Validate checks the details the same way CreateWithDetails does, without
// creating a customer. It lets callers reject input before an ID is taken.
func (d Details) Validate() error {
	if _, err := NewName(d.FirstName, d.LastName); err != nil {
		return err
	}

	if _, err := NewEmail(d.Email); err != nil {
		return err
	}

	if !blank(d.PhoneCountryCode) && !blank(d.PhoneNumber) {
		if _, err := NewPhone(d.PhoneCountryCode, d.PhoneNumber); err != nil {
			return err
		}
	}

	if !blank(d.Street) && !blank(d.City) && !blank(d.Country) && !blank(d.ZipCode) {
		if _, err := NewAddress(d.Street, d.City, d.State, d.Country, d.ZipCode); err != nil {
			return err
		}
	}

	return nil
}

// Create creates a new customer pending verification, at version 1.
func Create(id int, firstName, lastName, email string) (*Customer, error) {
	name, err := NewName(firstName, lastName)
	if err != nil {
		return nil, err
	}

	e, err := NewEmail(email)
	if err != nil {
		return nil, err
	}

	c := &Customer{id: id}
	if err := c.raise(now(), 1, Created, &CreatedData{
		FirstName: name.First(),
		LastName:  name.Last(),
		Email:     e.String(),
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// CreateWithDetails creates a new customer and sets the phone and address if
// they are given. Every step is its own operation with its own version.
func CreateWithDetails(id int, d Details) (*Customer, error) {
	c, err := Create(id, d.FirstName, d.LastName, d.Email)
	if err != nil {
		return nil, err
	}

	if !blank(d.PhoneCountryCode) && !blank(d.PhoneNumber) {
		if err := c.ChangePhone(d.PhoneCountryCode, d.PhoneNumber); err != nil {
			return nil, err
		}
	}

	if !blank(d.Street) && !blank(d.City) && !blank(d.Country) && !blank(d.ZipCode) {
		if err := c.ChangeAddress(d.Street, d.City, d.State, d.Country, d.ZipCode); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// UpdateName updates the name. It always counts as a change.
func (c *Customer) UpdateName(firstName, lastName string) error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	name, err := NewName(firstName, lastName)
	if err != nil {
		return err
	}

	return c.raise(now(), c.version+1, NameUpdated, &NameUpdatedData{
		OldFirstName: c.name.First(),
		OldLastName:  c.name.Last(),
		FirstName:    name.First(),
		LastName:     name.Last(),
	})
}

// ChangeEmail changes the email. An active customer has to verify the new
// email again. Nothing happens if the email is unchanged.
func (c *Customer) ChangeEmail(email string) error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	e, err := NewEmail(email)
	if err != nil {
		return err
	}

	if e == c.email {
		return nil
	}

	return c.raise(now(), c.version+1, EmailChanged, &EmailChangedData{
		OldEmail: c.email.String(),
		Email:    e.String(),
	})
}

// ChangePhone sets the phone number.
func (c *Customer) ChangePhone(countryCode, number string) error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	p, err := NewPhone(countryCode, number)
	if err != nil {
		return err
	}

	return c.raise(now(), c.version+1, PhoneChanged, &PhoneChangedData{
		CountryCode: p.CountryCode(),
		Number:      p.Number(),
	})
}

// RemovePhone removes the phone number, if there is one.
func (c *Customer) RemovePhone() error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	if c.phone == nil {
		return nil
	}

	return c.raise(now(), c.version+1, PhoneRemoved, nil)
}

// ChangeAddress sets the address.
func (c *Customer) ChangeAddress(street, city, state, country, zipCode string) error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	a, err := NewAddress(street, city, state, country, zipCode)
	if err != nil {
		return err
	}

	return c.raise(now(), c.version+1, AddressChanged, &AddressChangedData{
		Street:  a.Street(),
		City:    a.City(),
		State:   a.State(),
		Country: a.Country(),
		ZipCode: a.ZipCode(),
	})
}

// RemoveAddress removes the address, if there is one.
func (c *Customer) RemoveAddress() error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	if c.address == nil {
		return nil
	}

	return c.raise(now(), c.version+1, AddressRemoved, nil)
}

// Verify marks the email as verified and activates the customer.
func (c *Customer) Verify() error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	if c.status != PendingVerification {
		return newError(ErrInvalidStatusTransition,
			fmt.Sprintf("cannot verify customer in %s status", c.status))
	}

	t, v := now(), c.version+1
	if err := c.raise(t, v, Verified, &VerifiedData{VerifiedAt: t}); err != nil {
		return err
	}

	return c.raise(t, v, StatusChanged, &StatusChangedData{
		OldStatus: PendingVerification.String(),
		Status:    Active.String(),
		Reason:    "Email verified",
	})
}

// Activate activates an inactive or suspended customer. The customer must be
// verified first.
func (c *Customer) Activate(reason string) error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	switch c.status {
	case Active:
		return nil
	case PendingVerification:
		return newError(ErrInvalidStatusTransition, "customer must be verified before activation")
	}

	return c.changeStatus(Active, reason)
}

// Deactivate deactivates the customer.
func (c *Customer) Deactivate(reason string) error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	if c.status == Inactive {
		return nil
	}

	return c.changeStatus(Inactive, reason)
}

// Suspend suspends the customer, a reason is required.
func (c *Customer) Suspend(reason string) error {
	if err := c.ensureNotDeleted(); err != nil {
		return err
	}

	if blank(reason) {
		return newError(ErrReasonRequired, "suspension reason is required")
	}

	if c.status == Suspended {
		return nil
	}

	return c.changeStatus(Suspended, reason)
}

// Delete soft deletes the customer, a reason is required. Deleting a deleted
// customer does nothing.
func (c *Customer) Delete(reason string) error {
	if c.status == Deleted {
		return nil
	}

	if blank(reason) {
		return newError(ErrReasonRequired, "deletion reason is required")
	}

	t, v := now(), c.version+1
	if err := c.raise(t, v, CustomerDeleted, &DeletedData{Reason: reason, DeletedAt: t}); err != nil {
		return err
	}

	return c.raise(t, v, StatusChanged, &StatusChangedData{
		OldStatus: c.status.String(),
		Status:    Deleted.String(),
		Reason:    reason,
	})
}

func (c *Customer) changeStatus(to Status, reason string) error {
	return c.raise(now(), c.version+1, StatusChanged, &StatusChangedData{
		OldStatus: c.status.String(),
		Status:    to.String(),
		Reason:    reason,
	})
}

// IsActive returns true if the customer is active.
func (c *Customer) IsActive() bool { return c.status == Active }

// IsVerified returns true if the current email is verified.
func (c *Customer) IsVerified() bool { return !c.verifiedAt.IsZero() }

// IsDeleted returns true if the customer is deleted.
func (c *Customer) IsDeleted() bool { return c.status == Deleted }

// IsSuspended returns true if the customer is suspended.
func (c *Customer) IsSuspended() bool { return c.status == Suspended }

// CanBeModified returns true if the customer is not deleted.
func (c *Customer) CanBeModified() bool { return !c.IsDeleted() }

// ID returns the customer ID.
func (c *Customer) ID() int { return c.id }

// Version returns the version, incremented once for every operation.
func (c *Customer) Version() int { return c.version }

// Sequence returns the sequence number of the last event.
func (c *Customer) Sequence() int { return c.sequence }

// PersistedVersion returns the version that was last loaded or stored.
func (c *Customer) PersistedVersion() int { return c.persistedVersion }

// Name returns the name.
func (c *Customer) Name() Name { return c.name }

// Email returns the email.
func (c *Customer) Email() Email { return c.email }

// Phone returns the phone number, nil if not set.
func (c *Customer) Phone() *Phone {
	if c.phone == nil {
		return nil
	}

	p := *c.phone

	return &p
}

// Address returns the address, nil if not set.
func (c *Customer) Address() *Address {
	if c.address == nil {
		return nil
	}

	a := *c.address

	return &a
}

// Status returns the status.
func (c *Customer) Status() Status { return c.status }

// CreatedAt returns the time of creation.
func (c *Customer) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the time of the last update, zero if never updated.
func (c *Customer) UpdatedAt() time.Time { return c.updatedAt }

// VerifiedAt returns the time of verification, zero if not verified.
func (c *Customer) VerifiedAt() time.Time { return c.verifiedAt }

// DeletedAt returns the time of deletion, zero if not deleted.
func (c *Customer) DeletedAt() time.Time { return c.deletedAt }

// UncommittedEvents returns the events raised since the last commit.
func (c *Customer) UncommittedEvents() []eventlog.Event {
	return c.events
}

// ClearUncommittedEvents clears the uncommitted events, marking the current
// version as persisted.
func (c *Customer) ClearUncommittedEvents() {
	c.events = nil
	c.persistedVersion = c.version
}

// String implements the Stringer interface.
func (c *Customer) String() string {
	return fmt.Sprintf("customer %d (v%d, %s)", c.id, c.version, c.status)
}

// FromHistory rebuilds a customer from its events.
func FromHistory(events []eventlog.Event) (*Customer, error) {
	if len(events) == 0 {
		return nil, ErrNoHistory
	}

	c := &Customer{}
	if err := c.ApplyHistory(events); err != nil {
		return nil, err
	}

	return c, nil
}

// ApplyHistory applies stored events in version and sequence order, for
// example the tail of events after a snapshot.
func (c *Customer) ApplyHistory(events []eventlog.Event) error {
	sorted := make([]eventlog.Event, len(events))
	copy(sorted, events)
	SortEvents(sorted)

	for _, e := range sorted {
		if err := c.Apply(e); err != nil {
			return err
		}
	}

	c.persistedVersion = c.version

	return nil
}

// SortEvents sorts events by version and sequence.
func SortEvents(events []eventlog.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Version() != events[j].Version() {
			return events[i].Version() < events[j].Version()
		}

		return events[i].Sequence() < events[j].Sequence()
	})
}

// Apply applies an event to the state without validation and without raising
// new events. Version and sequence are taken from the event.
func (c *Customer) Apply(e eventlog.Event) error {
	apply, ok := appliers[e.EventType()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, e.EventType())
	}

	if err := apply(c, e); err != nil {
		return err
	}

	c.version = e.Version()
	c.sequence = e.Sequence()

	if e.EventType() != Created {
		c.updatedAt = e.OccurredOn()
	}

	return nil
}

var appliers = map[eventlog.EventType]func(*Customer, eventlog.Event) error{
	Created: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*CreatedData)
		if !ok {
			return invalidData(e)
		}

		c.id = e.CustomerID()
		c.name = Name{first: d.FirstName, last: d.LastName}
		c.email = Email{value: d.Email}
		c.status = PendingVerification
		c.createdAt = e.OccurredOn()

		return nil
	},
	NameUpdated: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*NameUpdatedData)
		if !ok {
			return invalidData(e)
		}

		c.name = Name{first: d.FirstName, last: d.LastName}

		return nil
	},
	EmailChanged: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*EmailChangedData)
		if !ok {
			return invalidData(e)
		}

		c.email = Email{value: d.Email}

		// A changed email has to be verified again.
		if c.status == Active {
			c.status = PendingVerification
			c.verifiedAt = time.Time{}
		}

		return nil
	},
	PhoneChanged: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*PhoneChangedData)
		if !ok {
			return invalidData(e)
		}

		c.phone = &Phone{countryCode: d.CountryCode, number: d.Number}

		return nil
	},
	PhoneRemoved: func(c *Customer, e eventlog.Event) error {
		c.phone = nil

		return nil
	},
	AddressChanged: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*AddressChangedData)
		if !ok {
			return invalidData(e)
		}

		c.address = &Address{
			street:  d.Street,
			city:    d.City,
			state:   d.State,
			country: d.Country,
			zipCode: d.ZipCode,
		}

		return nil
	},
	AddressRemoved: func(c *Customer, e eventlog.Event) error {
		c.address = nil

		return nil
	},
	StatusChanged: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*StatusChangedData)
		if !ok {
			return invalidData(e)
		}

		s, err := StatusFromName(d.Status)
		if err != nil {
			return err
		}

		c.status = s

		return nil
	},
	Verified: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*VerifiedData)
		if !ok {
			return invalidData(e)
		}

		c.verifiedAt = d.VerifiedAt.UTC()

		return nil
	},
	CustomerDeleted: func(c *Customer, e eventlog.Event) error {
		d, ok := e.Data().(*DeletedData)
		if !ok {
			return invalidData(e)
		}

		c.deletedAt = d.DeletedAt.UTC()

		return nil
	},
}

func invalidData(e eventlog.Event) error {
	return fmt.Errorf("%w: %T for %s", ErrInvalidEventData, e.Data(), e.EventType())
}

// raise creates an event for the next sequence, applies it and keeps it as
// uncommitted.
func (c *Customer) raise(t time.Time, version int, eventType eventlog.EventType, data eventlog.EventData) error {
	e := eventlog.NewEvent(eventType, data, t, eventlog.ForCustomer(c.id, version, c.sequence+1))
	if err := c.Apply(e); err != nil {
		return err
	}

	c.events = append(c.events, e)

	return nil
}

func (c *Customer) ensureNotDeleted() error {
	if c.IsDeleted() {
		return newError(ErrCustomerDeleted, "cannot modify a deleted customer")
	}

	return nil
}

func now() time.Time {
	return TimeNow().UTC().Truncate(time.Millisecond)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
