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
	"reflect"
	"testing"
	"time"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplab/eventlog"
)

func mockTime(t *testing.T) time.Time {
	t.Helper()

	timestamp := time.Date(2017, time.July, 10, 23, 0, 0, 123456789, time.Local)
	TimeNow = func() time.Time {
		return timestamp
	}
	t.Cleanup(func() { TimeNow = time.Now })

	return timestamp.UTC().Truncate(time.Millisecond)
}

type expectedEvent struct {
	eventType eventlog.EventType
	data      eventlog.EventData
	version   int
	sequence  int
}

func checkEvents(t *testing.T, id int, timestamp time.Time, events []eventlog.Event, expected []expectedEvent) {
	t.Helper()

	if len(events) != len(expected) {
		t.Fatalf("there should be %d events: %s", len(expected), pretty.Sprint(events))
	}

	for i, e := range events {
		ex := expected[i]
		if e.EventType() != ex.eventType {
			t.Error("the event type should be correct:", e.EventType())
		}

		if !reflect.DeepEqual(e.Data(), ex.data) {
			t.Error("the event data should be correct:")
			t.Log(pretty.Diff(e.Data(), ex.data))
		}

		if e.CustomerID() != id || e.Version() != ex.version || e.Sequence() != ex.sequence {
			t.Error("the customer data should be correct:", e)
		}

		if !e.OccurredOn().Equal(timestamp) {
			t.Error("the timestamp should be correct:", e.OccurredOn())
		}
	}
}

func newTestCustomer(t *testing.T) *Customer {
	t.Helper()

	c, err := Create(1, "John", "Doe", "john@example.com")
	require.NoError(t, err)
	c.ClearUncommittedEvents()

	return c
}

func TestCreate(t *testing.T) {
	timestamp := mockTime(t)

	c, err := Create(1, " John ", "Doe", "John@Example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, c.ID())
	assert.Equal(t, 1, c.Version())
	assert.Equal(t, 1, c.Sequence())
	assert.Equal(t, 0, c.PersistedVersion())
	assert.Equal(t, PendingVerification, c.Status())
	assert.Equal(t, "john@example.com", c.Email().String())
	assert.Equal(t, "John Doe", c.Name().String())
	assert.True(t, c.CreatedAt().Equal(timestamp))
	assert.True(t, c.UpdatedAt().IsZero())
	assert.False(t, c.IsVerified())
	assert.Nil(t, c.Phone())
	assert.Nil(t, c.Address())

	checkEvents(t, 1, timestamp, c.UncommittedEvents(), []expectedEvent{
		{Created, &CreatedData{FirstName: "John", LastName: "Doe", Email: "john@example.com"}, 1, 1},
	})

	c.ClearUncommittedEvents()
	assert.Empty(t, c.UncommittedEvents())
	assert.Equal(t, 1, c.PersistedVersion())

	if _, err := Create(1, "", "Doe", "john@example.com"); !errors.Is(err, ErrInvalidName) {
		t.Error("there should be an invalid name error:", err)
	}

	if _, err := Create(1, "John", "Doe", "john"); !errors.Is(err, ErrInvalidEmail) {
		t.Error("there should be an invalid email error:", err)
	}
}

func TestCreateWithDetails(t *testing.T) {
	timestamp := mockTime(t)

	c, err := CreateWithDetails(2, Details{
		FirstName:        "Jane",
		LastName:         "Doe",
		Email:            "jane@example.com",
		PhoneCountryCode: "46",
		PhoneNumber:      "070 123 45 67",
		Street:           "Main St 1",
		City:             "Springfield",
		Country:          "US",
		ZipCode:          "12345",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Version())
	checkEvents(t, 2, timestamp, c.UncommittedEvents(), []expectedEvent{
		{Created, &CreatedData{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"}, 1, 1},
		{PhoneChanged, &PhoneChangedData{CountryCode: "46", Number: "0701234567"}, 2, 2},
		{AddressChanged, &AddressChangedData{
			Street: "Main St 1", City: "Springfield", Country: "US", ZipCode: "12345",
		}, 3, 3},
	})

	// Partial details are skipped.
	c, err = CreateWithDetails(3, Details{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@example.com",
		PhoneNumber: "0701234567",
		Street:      "Main St 1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Version())

	_, err = CreateWithDetails(4, Details{
		FirstName:        "Jane",
		LastName:         "Doe",
		Email:            "jane@example.com",
		PhoneCountryCode: "46",
		PhoneNumber:      "12",
	})
	if !errors.Is(err, ErrInvalidPhone) {
		t.Error("there should be an invalid phone error:", err)
	}
}

func TestDetailsValidate(t *testing.T) {
	cases := map[string]struct {
		details Details
		err     error
	}{
		"valid": {
			Details{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
			nil,
		},
		"partial details": {
			Details{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", PhoneNumber: "12", Street: "Main St 1"},
			nil,
		},
		"name": {
			Details{FirstName: "Jane", Email: "jane@example.com"},
			ErrInvalidName,
		},
		"email": {
			Details{FirstName: "Jane", LastName: "Doe", Email: "jane"},
			ErrInvalidEmail,
		},
		"phone": {
			Details{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", PhoneCountryCode: "46", PhoneNumber: "12"},
			ErrInvalidPhone,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.details.Validate()
			if !errors.Is(err, tc.err) {
				t.Error("the error should be correct:", err)
			}

			// Validate agrees with creating the customer.
			_, createErr := CreateWithDetails(1, tc.details)
			if !errors.Is(createErr, tc.err) {
				t.Error("the create error should be correct:", createErr)
			}
		})
	}
}

func TestOperations(t *testing.T) {
	timestamp := mockTime(t)

	cases := map[string]struct {
		setup          func(c *Customer)
		op             func(c *Customer) error
		expectedEvents []expectedEvent
		expectedErr    error
	}{
		"update name": {
			nil,
			func(c *Customer) error { return c.UpdateName("Johnny", "Doe") },
			[]expectedEvent{
				{NameUpdated, &NameUpdatedData{
					OldFirstName: "John", OldLastName: "Doe", FirstName: "Johnny", LastName: "Doe",
				}, 2, 2},
			},
			nil,
		},
		"update name (same)": {
			nil,
			func(c *Customer) error { return c.UpdateName("John", "Doe") },
			[]expectedEvent{
				{NameUpdated, &NameUpdatedData{
					OldFirstName: "John", OldLastName: "Doe", FirstName: "John", LastName: "Doe",
				}, 2, 2},
			},
			nil,
		},
		"update name (invalid)": {
			nil,
			func(c *Customer) error { return c.UpdateName("", "Doe") },
			nil,
			ErrInvalidName,
		},
		"change email": {
			nil,
			func(c *Customer) error { return c.ChangeEmail("johnny@example.com") },
			[]expectedEvent{
				{EmailChanged, &EmailChangedData{OldEmail: "john@example.com", Email: "johnny@example.com"}, 2, 2},
			},
			nil,
		},
		"change email (unchanged)": {
			nil,
			func(c *Customer) error { return c.ChangeEmail(" JOHN@example.com") },
			nil,
			nil,
		},
		"change phone": {
			nil,
			func(c *Customer) error { return c.ChangePhone("1", "(555) 123-4567") },
			[]expectedEvent{
				{PhoneChanged, &PhoneChangedData{CountryCode: "1", Number: "5551234567"}, 2, 2},
			},
			nil,
		},
		"remove phone": {
			func(c *Customer) { _ = c.ChangePhone("1", "5551234567") },
			func(c *Customer) error { return c.RemovePhone() },
			[]expectedEvent{
				{PhoneRemoved, nil, 3, 3},
			},
			nil,
		},
		"remove phone (no phone)": {
			nil,
			func(c *Customer) error { return c.RemovePhone() },
			nil,
			nil,
		},
		"change address": {
			nil,
			func(c *Customer) error { return c.ChangeAddress("Street", "City", "State", "Country", "123") },
			[]expectedEvent{
				{AddressChanged, &AddressChangedData{
					Street: "Street", City: "City", State: "State", Country: "Country", ZipCode: "123",
				}, 2, 2},
			},
			nil,
		},
		"remove address": {
			func(c *Customer) { _ = c.ChangeAddress("Street", "City", "", "Country", "123") },
			func(c *Customer) error { return c.RemoveAddress() },
			[]expectedEvent{
				{AddressRemoved, nil, 3, 3},
			},
			nil,
		},
		"remove address (no address)": {
			nil,
			func(c *Customer) error { return c.RemoveAddress() },
			nil,
			nil,
		},
		"verify": {
			nil,
			func(c *Customer) error { return c.Verify() },
			[]expectedEvent{
				{Verified, &VerifiedData{VerifiedAt: timestamp}, 2, 2},
				{StatusChanged, &StatusChangedData{
					OldStatus: "PendingVerification", Status: "Active", Reason: "Email verified",
				}, 2, 3},
			},
			nil,
		},
		"verify (active)": {
			func(c *Customer) { _ = c.Verify() },
			func(c *Customer) error { return c.Verify() },
			nil,
			ErrInvalidStatusTransition,
		},
		"activate (pending verification)": {
			nil,
			func(c *Customer) error { return c.Activate("") },
			nil,
			ErrInvalidStatusTransition,
		},
		"activate (active)": {
			func(c *Customer) { _ = c.Verify() },
			func(c *Customer) error { return c.Activate("") },
			nil,
			nil,
		},
		"activate (suspended)": {
			func(c *Customer) { _ = c.Verify(); _ = c.Suspend("fraud") },
			func(c *Customer) error { return c.Activate("cleared") },
			[]expectedEvent{
				{StatusChanged, &StatusChangedData{OldStatus: "Suspended", Status: "Active", Reason: "cleared"}, 4, 5},
			},
			nil,
		},
		"deactivate": {
			nil,
			func(c *Customer) error { return c.Deactivate("") },
			[]expectedEvent{
				{StatusChanged, &StatusChangedData{OldStatus: "PendingVerification", Status: "Inactive"}, 2, 2},
			},
			nil,
		},
		"deactivate (inactive)": {
			func(c *Customer) { _ = c.Deactivate("") },
			func(c *Customer) error { return c.Deactivate("again") },
			nil,
			nil,
		},
		"suspend": {
			nil,
			func(c *Customer) error { return c.Suspend("fraud") },
			[]expectedEvent{
				{StatusChanged, &StatusChangedData{OldStatus: "PendingVerification", Status: "Suspended", Reason: "fraud"}, 2, 2},
			},
			nil,
		},
		"suspend (no reason)": {
			nil,
			func(c *Customer) error { return c.Suspend(" ") },
			nil,
			ErrReasonRequired,
		},
		"suspend (suspended)": {
			func(c *Customer) { _ = c.Suspend("fraud") },
			func(c *Customer) error { return c.Suspend("again") },
			nil,
			nil,
		},
		"delete": {
			nil,
			func(c *Customer) error { return c.Delete("gdpr") },
			[]expectedEvent{
				{CustomerDeleted, &DeletedData{Reason: "gdpr", DeletedAt: timestamp}, 2, 2},
				{StatusChanged, &StatusChangedData{OldStatus: "PendingVerification", Status: "Deleted", Reason: "gdpr"}, 2, 3},
			},
			nil,
		},
		"delete (no reason)": {
			nil,
			func(c *Customer) error { return c.Delete("") },
			nil,
			ErrReasonRequired,
		},
		"delete (deleted)": {
			func(c *Customer) { _ = c.Delete("gdpr") },
			func(c *Customer) error { return c.Delete("") },
			nil,
			nil,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestCustomer(t)
			if tc.setup != nil {
				tc.setup(c)
				c.ClearUncommittedEvents()
			}

			versionBefore := c.Version()

			err := tc.op(c)
			if !errors.Is(err, tc.expectedErr) {
				t.Error("there should be the correct error:", err)
			}

			if tc.expectedErr != nil && !IsDomainError(err) {
				t.Error("the error should be a domain error:", err)
			}

			checkEvents(t, 1, timestamp, c.UncommittedEvents(), tc.expectedEvents)

			if len(tc.expectedEvents) == 0 && c.Version() != versionBefore {
				t.Error("the version should not change:", c.Version())
			}

			if len(tc.expectedEvents) > 0 && c.Version() != versionBefore+1 {
				t.Error("the version should be incremented once:", c.Version())
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	timestamp := mockTime(t)
	c := newTestCustomer(t)

	require.NoError(t, c.Verify())
	assert.True(t, c.IsActive())
	assert.True(t, c.IsVerified())
	assert.True(t, c.VerifiedAt().Equal(timestamp))

	// A new email must be verified again.
	require.NoError(t, c.ChangeEmail("other@example.com"))
	assert.Equal(t, PendingVerification, c.Status())
	assert.False(t, c.IsVerified())

	require.NoError(t, c.Verify())
	require.NoError(t, c.Suspend("chargeback"))
	assert.True(t, c.IsSuspended())

	// Changing the email of a suspended customer keeps the status.
	require.NoError(t, c.ChangeEmail("third@example.com"))
	assert.Equal(t, Suspended, c.Status())
	assert.True(t, c.IsVerified())

	require.NoError(t, c.Deactivate("closed"))
	assert.Equal(t, Inactive, c.Status())
	require.NoError(t, c.Activate("reopened"))
	assert.True(t, c.IsActive())
	assert.Equal(t, 8, c.Version())
	assert.Equal(t, 10, c.Sequence())
}

func TestDeletedCustomerCanNotBeModified(t *testing.T) {
	timestamp := mockTime(t)
	c := newTestCustomer(t)

	require.NoError(t, c.Delete("gdpr"))
	assert.True(t, c.IsDeleted())
	assert.False(t, c.CanBeModified())
	assert.True(t, c.DeletedAt().Equal(timestamp))
	c.ClearUncommittedEvents()

	ops := map[string]func() error{
		"update name":    func() error { return c.UpdateName("A", "B") },
		"change email":   func() error { return c.ChangeEmail("a@example.com") },
		"change phone":   func() error { return c.ChangePhone("1", "5551234567") },
		"remove phone":   func() error { return c.RemovePhone() },
		"change address": func() error { return c.ChangeAddress("S", "C", "", "US", "1") },
		"remove address": func() error { return c.RemoveAddress() },
		"verify":         func() error { return c.Verify() },
		"activate":       func() error { return c.Activate("") },
		"deactivate":     func() error { return c.Deactivate("") },
		"suspend":        func() error { return c.Suspend("reason") },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			if !errors.Is(err, ErrCustomerDeleted) {
				t.Error("there should be a customer deleted error:", err)
			}
		})
	}

	assert.NoError(t, c.Delete("again"))
	assert.Empty(t, c.UncommittedEvents())
	assert.Equal(t, 2, c.Version())
}

func TestFromHistory(t *testing.T) {
	mockTime(t)

	c, err := CreateWithDetails(5, Details{
		FirstName:        "John",
		LastName:         "Doe",
		Email:            "john@example.com",
		PhoneCountryCode: "46",
		PhoneNumber:      "0701234567",
	})
	require.NoError(t, err)
	require.NoError(t, c.Verify())
	require.NoError(t, c.ChangeAddress("Street", "City", "", "US", "1"))

	TimeNow = func() time.Time { return time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, c.ChangeEmail("new@example.com"))
	require.NoError(t, c.RemovePhone())
	require.NoError(t, c.Suspend("fraud"))
	require.NoError(t, c.Delete("gdpr"))

	events := c.UncommittedEvents()

	// Replay must not depend on the given order.
	reversed := make([]eventlog.Event, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}

	replayed, err := FromHistory(reversed)
	require.NoError(t, err)

	if !reflect.DeepEqual(replayed.State(), c.State()) {
		t.Error("the replayed state should be equal:")
		t.Log(pretty.Diff(replayed.State(), c.State()))
	}

	assert.Empty(t, replayed.UncommittedEvents())
	assert.Equal(t, c.Version(), replayed.PersistedVersion())

	if _, err := FromHistory(nil); !errors.Is(err, ErrNoHistory) {
		t.Error("there should be a no history error:", err)
	}

	unknown := eventlog.NewEventForCustomer("customer:unknown", nil, time.Now(), 5, 1, 1)
	if _, err := FromHistory([]eventlog.Event{unknown}); !errors.Is(err, ErrUnknownEvent) {
		t.Error("there should be an unknown event error:", err)
	}

	invalid := eventlog.NewEventForCustomer(Created, &NameUpdatedData{}, time.Now(), 5, 1, 1)
	if _, err := FromHistory([]eventlog.Event{invalid}); !errors.Is(err, ErrInvalidEventData) {
		t.Error("there should be an invalid event data error:", err)
	}
}

func TestVersionsAndSequences(t *testing.T) {
	mockTime(t)

	c, err := Create(1, "John", "Doe", "john@example.com")
	require.NoError(t, err)
	require.NoError(t, c.ChangeEmail("johnny@example.com"))
	require.NoError(t, c.Verify())

	var versions, sequences []int
	for _, e := range c.UncommittedEvents() {
		versions = append(versions, e.Version())
		sequences = append(sequences, e.Sequence())
	}

	assert.Equal(t, []int{1, 2, 3, 3}, versions)
	assert.Equal(t, []int{1, 2, 3, 4}, sequences)
	assert.Equal(t, 3, c.Version())
	assert.Equal(t, 4, c.Sequence())
}
