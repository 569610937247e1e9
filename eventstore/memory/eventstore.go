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

// Package memory is an in memory event store and snapshot store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/looplab/eventlog"
)

// EventStore implements eventlog.EventStore and eventlog.SnapshotStore as an
// in memory structure.
type EventStore struct {
	db        map[int]*customerRecord
	eventIDs  map[uuid.UUID]struct{}
	snapshots map[int]eventlog.Snapshot
	dbMu      sync.RWMutex
}

type customerRecord struct {
	version  int
	sequence int
	events   []eventlog.Event
}

// NewEventStore creates a new EventStore using memory as storage.
func NewEventStore() *EventStore {
	return &EventStore{
		db:        map[int]*customerRecord{},
		eventIDs:  map[uuid.UUID]struct{}{},
		snapshots: map[int]eventlog.Snapshot{},
	}
}

// Save implements the Save method of the eventlog.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []eventlog.Event, expectedVersion int) error {
	if len(events) == 0 {
		return &eventlog.EventStoreError{
			Err: eventlog.ErrMissingEvents,
			Op:  eventlog.EventStoreOpSave,
		}
	}

	id := events[0].CustomerID()
	version := expectedVersion

	// Validate incoming events and create all event records.
	for i, event := range events {
		// Only accept events belonging to the same customer.
		if event.CustomerID() != id {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrMismatchedEventCustomerIDs,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
				Events:     events,
			}
		}

		// Versions start after the expected version and only move in steps of
		// one, events of the same operation share the version.
		if (i == 0 && event.Version() != expectedVersion+1) ||
			(event.Version() != version && event.Version() != version+1) {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrIncorrectEventVersion,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
				Version:    event.Version(),
				Events:     events,
			}
		}

		version = event.Version()
	}

	if err := ctx.Err(); err != nil {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotSaveEvents,
			BaseErr:    err,
			Op:         eventlog.EventStoreOpSave,
			CustomerID: id,
		}
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	r, ok := s.db[id]
	if !ok {
		r = &customerRecord{}
	}

	if r.version != expectedVersion {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrEventConflictFromOtherSave,
			Op:         eventlog.EventStoreOpSave,
			CustomerID: id,
			Version:    expectedVersion,
		}
	}

	copies := make([]eventlog.Event, len(events))
	batchIDs := make(map[uuid.UUID]struct{}, len(events))

	for i, event := range events {
		if event.Sequence() != r.sequence+i+1 {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrIncorrectEventSequence,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
				Version:    event.Version(),
				Events:     events,
			}
		}

		_, stored := s.eventIDs[event.EventID()]
		_, inBatch := batchIDs[event.EventID()]

		if stored || inBatch {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrEventConflictFromOtherSave,
				BaseErr:    fmt.Errorf("duplicate event ID %s", event.EventID()),
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
				Version:    event.Version(),
			}
		}

		e, err := copyEvent(event)
		if err != nil {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrCouldNotSaveEvents,
				BaseErr:    err,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
			}
		}

		copies[i] = e
		batchIDs[event.EventID()] = struct{}{}
	}

	for _, e := range copies {
		s.eventIDs[e.EventID()] = struct{}{}
	}

	r.events = append(r.events, copies...)
	r.version = version
	r.sequence += len(copies)
	s.db[id] = r

	return nil
}

// Load implements the Load method of the eventlog.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id int) ([]eventlog.Event, error) {
	return s.LoadFrom(ctx, id, 0)
}

// LoadFrom implements the LoadFrom method of the eventlog.EventStore interface.
func (s *EventStore) LoadFrom(ctx context.Context, id int, version int) ([]eventlog.Event, error) {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	r, ok := s.db[id]
	if !ok {
		return nil, &eventlog.EventStoreError{
			Err:        eventlog.ErrCustomerNotFound,
			Op:         eventlog.EventStoreOpLoad,
			CustomerID: id,
		}
	}

	events := make([]eventlog.Event, 0, len(r.events))

	for _, event := range r.events {
		if event.Version() <= version {
			continue
		}

		e, err := copyEvent(event)
		if err != nil {
			return nil, &eventlog.EventStoreError{
				Err:        eventlog.ErrCouldNotLoadEvents,
				BaseErr:    err,
				Op:         eventlog.EventStoreOpLoad,
				CustomerID: id,
			}
		}

		events = append(events, e)
	}

	return events, nil
}

// CurrentVersion implements the CurrentVersion method of the eventlog.EventStore interface.
func (s *EventStore) CurrentVersion(ctx context.Context, id int) (int, error) {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	if r, ok := s.db[id]; ok {
		return r.version, nil
	}

	return 0, nil
}

// LoadSnapshot implements the LoadSnapshot method of the eventlog.SnapshotStore interface.
func (s *EventStore) LoadSnapshot(ctx context.Context, id int) (*eventlog.Snapshot, error) {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	snapshot, ok := s.snapshots[id]
	if !ok {
		return nil, nil
	}

	snapshot.State = append([]byte(nil), snapshot.State...)

	return &snapshot, nil
}

// SaveSnapshot implements the SaveSnapshot method of the eventlog.SnapshotStore interface.
func (s *EventStore) SaveSnapshot(ctx context.Context, snapshot eventlog.Snapshot) error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if existing, ok := s.snapshots[snapshot.CustomerID]; ok && existing.Version > snapshot.Version {
		return nil
	}

	snapshot.State = append([]byte(nil), snapshot.State...)
	s.snapshots[snapshot.CustomerID] = snapshot

	return nil
}

// Close implements the Close method of the eventlog.EventStore interface.
func (s *EventStore) Close() error {
	return nil
}

// copyEvent duplicates an event.
func copyEvent(event eventlog.Event) (eventlog.Event, error) {
	var data eventlog.EventData

	// Copy data if there is any.
	if event.Data() != nil {
		var err error
		if data, err = eventlog.CreateEventData(event.EventType()); err != nil {
			return nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := copier.Copy(data, event.Data()); err != nil {
			return nil, fmt.Errorf("could not copy event data: %w", err)
		}
	}

	return eventlog.NewEvent(
		event.EventType(),
		data,
		event.OccurredOn(),
		eventlog.ForCustomer(event.CustomerID(), event.Version(), event.Sequence()),
		eventlog.WithEventID(event.EventID()),
	), nil
}
