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

package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

// AcceptanceTest is the acceptance test that all implementations of EventStore
// should pass. It should manually be called from a test case in each
// implementation:
//
//	func TestEventStore(t *testing.T) {
//	    store := NewEventStore()
//	    eventstore.AcceptanceTest(t, store, context.Background())
//	}
//
// The store is expected to be empty.
func AcceptanceTest(t *testing.T, store eventlog.EventStore, ctx context.Context) []eventlog.Event {
	savedEvents := []eventlog.Event{}

	// Save no events.
	eventStoreErr := &eventlog.EventStoreError{}

	err := store.Save(ctx, []eventlog.Event{}, 0)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrMissingEvents) {
		t.Error("there should be a event store error:", err)
	}

	// Load and version of a customer without events.
	events, err := store.Load(ctx, 1)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrCustomerNotFound) {
		t.Error("there should be a not found error:", err)
	}

	if len(events) != 0 {
		t.Error("there should be no loaded events:", eventsToString(events))
	}

	if v, err := store.CurrentVersion(ctx, 1); err != nil || v != 0 {
		t.Error("the version should be 0:", v, err)
	}

	// Save event, version 1.
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)
	event1 := eventlog.NewEventForCustomer(customer.Created, &customer.CreatedData{
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
	}, timestamp, 1, 1, 1)

	err = store.Save(ctx, []eventlog.Event{event1}, 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event1)

	// Try to save same event twice.
	err = store.Save(ctx, []eventlog.Event{event1}, 0)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrEventConflictFromOtherSave) {
		t.Error("there should be a conflict error:", err)
	}

	// Save with a stale expected version.
	stale := eventlog.NewEventForCustomer(customer.EmailChanged, &customer.EmailChangedData{
		OldEmail: "john@example.com",
		Email:    "stale@example.com",
	}, timestamp, 1, 1, 2)

	err = store.Save(ctx, []eventlog.Event{stale}, 0)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrEventConflictFromOtherSave) {
		t.Error("there should be a conflict error:", err)
	}

	// Save with a version gap.
	gap := eventlog.NewEventForCustomer(customer.NameUpdated, &customer.NameUpdatedData{}, timestamp, 1, 3, 2)

	err = store.Save(ctx, []eventlog.Event{gap}, 1)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrIncorrectEventVersion) {
		t.Error("there should be a version error:", err)
	}

	// Save with a sequence gap.
	seqGap := eventlog.NewEventForCustomer(customer.NameUpdated, &customer.NameUpdatedData{}, timestamp, 1, 2, 3)

	err = store.Save(ctx, []eventlog.Event{seqGap}, 1)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrIncorrectEventSequence) {
		t.Error("there should be a sequence error:", err)
	}

	// Save events for different customers.
	eventSameID := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, timestamp, 1, 2, 2)
	eventOtherID := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, timestamp, 3, 2, 3)

	err = store.Save(ctx, []eventlog.Event{eventSameID, eventOtherID}, 1)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrMismatchedEventCustomerIDs) {
		t.Error("there should be a mismatched customer error:", err)
	}

	// Save a batch with the same event ID twice.
	dup := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, timestamp, 1, 2, 2)
	dupAgain := eventlog.NewEvent(customer.AddressRemoved, nil, timestamp,
		eventlog.ForCustomer(1, 2, 3), eventlog.WithEventID(dup.EventID()))

	err = store.Save(ctx, []eventlog.Event{dup, dupAgain}, 1)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, eventlog.ErrEventConflictFromOtherSave) {
		t.Error("there should be a conflict error:", err)
	}

	// Nothing of the failed saves is stored.
	if v, err := store.CurrentVersion(ctx, 1); err != nil || v != 1 {
		t.Error("the version should be 1:", v, err)
	}

	// Save event, version 2.
	event2 := eventlog.NewEventForCustomer(customer.EmailChanged, &customer.EmailChangedData{
		OldEmail: "john@example.com",
		Email:    "johnny@example.com",
	}, timestamp, 1, 2, 2)

	err = store.Save(ctx, []eventlog.Event{event2}, 1)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event2)

	// Save two events of one operation, version 3.
	verifiedAt := timestamp.Add(time.Hour)
	event3 := eventlog.NewEventForCustomer(customer.Verified, &customer.VerifiedData{
		VerifiedAt: verifiedAt,
	}, verifiedAt, 1, 3, 3)
	event4 := eventlog.NewEventForCustomer(customer.StatusChanged, &customer.StatusChangedData{
		OldStatus: "PendingVerification",
		Status:    "Active",
		Reason:    "Email verified",
	}, verifiedAt, 1, 3, 4)

	err = store.Save(ctx, []eventlog.Event{event3, event4}, 2)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event3, event4)

	// Save event without data, version 4.
	event5 := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, verifiedAt, 1, 4, 5)

	err = store.Save(ctx, []eventlog.Event{event5}, 3)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event5)

	// Save event for another customer.
	event6 := eventlog.NewEventForCustomer(customer.Created, &customer.CreatedData{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
	}, timestamp, 2, 1, 1)

	err = store.Save(ctx, []eventlog.Event{event6}, 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event6)

	// Load events.
	events, err = store.Load(ctx, 1)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	expectedEvents := []eventlog.Event{
		event1,         // Version 1
		event2,         // Version 2
		event3, event4, // Version 3
		event5, // Version 4
	}

	if len(events) != len(expectedEvents) {
		t.Errorf("incorrect number of loaded events: %d", len(events))
	}

	for i, event := range events {
		if i >= len(expectedEvents) {
			break
		}

		if err := eventlog.CompareEvents(event, expectedEvents[i]); err != nil {
			t.Error("the event was incorrect:", err)
		}
	}

	// Load events after a version.
	events, err = store.LoadFrom(ctx, 1, 2)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if !eventlog.CompareEventSlices(events, []eventlog.Event{event3, event4, event5}) {
		t.Error("the events after version 2 should be correct:", eventsToString(events))
	}

	events, err = store.LoadFrom(ctx, 1, 4)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(events) != 0 {
		t.Error("there should be no events after the last version:", eventsToString(events))
	}

	if _, err := store.LoadFrom(ctx, 99, 0); !errors.Is(err, eventlog.ErrCustomerNotFound) {
		t.Error("there should be a not found error:", err)
	}

	// Versions.
	if v, err := store.CurrentVersion(ctx, 1); err != nil || v != 4 {
		t.Error("the version should be 4:", v, err)
	}

	if v, err := store.CurrentVersion(ctx, 2); err != nil || v != 1 {
		t.Error("the version should be 1:", v, err)
	}

	// Load events for another customer.
	events, err = store.Load(ctx, 2)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if !eventlog.CompareEventSlices(events, []eventlog.Event{event6}) {
		t.Error("the events should be correct:", eventsToString(events))
	}

	// Concurrent saves with the same expected version, only one may win.
	const writers = 5

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			e := eventlog.NewEventForCustomer(customer.NameUpdated, &customer.NameUpdatedData{
				FirstName: fmt.Sprintf("Jane%d", i),
				LastName:  "Doe",
			}, timestamp, 2, 2, 2)

			err := store.Save(ctx, []eventlog.Event{e}, 1)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				succeeded++
			} else if errors.Is(err, eventlog.ErrEventConflictFromOtherSave) {
				conflicts++
			} else {
				t.Error("there should be no other error:", err)
			}
		}(i)
	}

	wg.Wait()

	if succeeded != 1 || conflicts != writers-1 {
		t.Error("exactly one concurrent save should succeed:", succeeded, conflicts)
	}

	return savedEvents
}

// SnapshotAcceptanceTest is the acceptance test that all implementations of
// SnapshotStore should pass.
func SnapshotAcceptanceTest(t *testing.T, store eventlog.SnapshotStore, ctx context.Context) {
	const id = 42

	loaded, err := store.LoadSnapshot(ctx, id)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if loaded != nil {
		t.Error("snapshot should be nil, it doesnt exists")
	}

	snapshot := eventlog.Snapshot{
		CustomerID: id,
		Version:    10,
		Sequence:   12,
		State:      json.RawMessage(`{"id":42,"version":10}`),
		CreatedAt:  time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC),
	}

	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Error("there should be no error:", err)
	}

	loaded, err = store.LoadSnapshot(ctx, id)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	assertSnapshot(t, snapshot, loaded)

	// A newer snapshot replaces the old one.
	newer := snapshot
	newer.Version = 20
	newer.Sequence = 25
	newer.State = json.RawMessage(`{"id":42,"version":20}`)
	newer.CreatedAt = snapshot.CreatedAt.Add(time.Hour)

	if err := store.SaveSnapshot(ctx, newer); err != nil {
		t.Error("there should be no error:", err)
	}

	loaded, err = store.LoadSnapshot(ctx, id)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	assertSnapshot(t, newer, loaded)

	// An older snapshot never replaces a newer one.
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Error("there should be no error:", err)
	}

	loaded, err = store.LoadSnapshot(ctx, id)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	assertSnapshot(t, newer, loaded)
}

func assertSnapshot(t *testing.T, expected eventlog.Snapshot, loaded *eventlog.Snapshot) {
	t.Helper()

	if loaded == nil {
		t.Error("there should be a snapshot")

		return
	}

	assert.Equal(t, expected.CustomerID, loaded.CustomerID)
	assert.Equal(t, expected.Version, loaded.Version)
	assert.Equal(t, expected.Sequence, loaded.Sequence)
	assert.JSONEq(t, string(expected.State), string(loaded.State))
	assert.True(t, expected.CreatedAt.Equal(loaded.CreatedAt), "the snapshot time should be correct")
}

func eventsToString(events []eventlog.Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = e.String()
	}

	return strings.Join(parts, ", ")
}
