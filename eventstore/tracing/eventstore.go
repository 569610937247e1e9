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

// Package tracing adds Open Tracing spans to event stores.
package tracing

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/looplab/eventlog"
)

// EventStore is an eventlog.EventStore that adds tracing with Open Tracing.
type EventStore struct {
	eventlog.EventStore
}

// NewEventStore creates a new EventStore.
func NewEventStore(eventStore eventlog.EventStore) *EventStore {
	if eventStore == nil {
		return nil
	}

	return &EventStore{
		EventStore: eventStore,
	}
}

// Save implements the Save method of the eventlog.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []eventlog.Event, expectedVersion int) error {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.Save")

	err := s.EventStore.Save(ctx, events, expectedVersion)

	// Use the first event for tracing metadata.
	if len(events) > 0 {
		setEventTags(sp, events[0])
	}

	sp.SetTag("eventlog.expected_version", expectedVersion)
	sp.SetTag("eventlog.num_events", len(events))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return err
}

// Load implements the Load method of the eventlog.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id int) ([]eventlog.Event, error) {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.Load")

	events, err := s.EventStore.Load(ctx, id)

	sp.SetTag("eventlog.customer_id", id)
	sp.SetTag("eventlog.num_events", len(events))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return events, err
}

// LoadFrom implements the LoadFrom method of the eventlog.EventStore interface.
func (s *EventStore) LoadFrom(ctx context.Context, id int, version int) ([]eventlog.Event, error) {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.LoadFrom")

	events, err := s.EventStore.LoadFrom(ctx, id, version)

	sp.SetTag("eventlog.customer_id", id)
	sp.SetTag("eventlog.from_version", version)
	sp.SetTag("eventlog.num_events", len(events))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return events, err
}

// LoadSnapshot implements the LoadSnapshot method of the eventlog.SnapshotStore
// interface, if the wrapped store is a snapshot store.
func (s *EventStore) LoadSnapshot(ctx context.Context, id int) (*eventlog.Snapshot, error) {
	ss, ok := s.EventStore.(eventlog.SnapshotStore)
	if !ok {
		return nil, nil
	}

	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.LoadSnapshot")

	snapshot, err := ss.LoadSnapshot(ctx, id)

	sp.SetTag("eventlog.customer_id", id)

	if snapshot != nil {
		sp.SetTag("eventlog.version", snapshot.Version)
	}

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return snapshot, err
}

// SaveSnapshot implements the SaveSnapshot method of the eventlog.SnapshotStore
// interface. Returns eventlog.ErrSnapshotsNotSupported if the wrapped store is
// not a snapshot store.
func (s *EventStore) SaveSnapshot(ctx context.Context, snapshot eventlog.Snapshot) error {
	ss, ok := s.EventStore.(eventlog.SnapshotStore)
	if !ok {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrSnapshotsNotSupported,
			Op:         eventlog.EventStoreOpSaveSnapshot,
			CustomerID: snapshot.CustomerID,
			Version:    snapshot.Version,
		}
	}

	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.SaveSnapshot")

	err := ss.SaveSnapshot(ctx, snapshot)

	sp.SetTag("eventlog.customer_id", snapshot.CustomerID)
	sp.SetTag("eventlog.version", snapshot.Version)

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return err
}

func setEventTags(sp opentracing.Span, event eventlog.Event) {
	sp.SetTag("eventlog.event_type", event.EventType().String())
	sp.SetTag("eventlog.customer_id", event.CustomerID())
	sp.SetTag("eventlog.version", event.Version())
	sp.SetTag("eventlog.sequence", event.Sequence())
}
