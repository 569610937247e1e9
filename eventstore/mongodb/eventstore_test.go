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

package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
	"github.com/looplab/eventlog/eventstore"
	"github.com/looplab/eventlog/mongoutils"
)

func TestEventStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := mongoutils.NewTestClient(t)

	store, err := NewEventStoreWithClient(client, mongoutils.RandomDBName(t))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if store == nil {
		t.Fatal("there should be a store")
	}

	defer store.Close()

	eventstore.AcceptanceTest(t, store, context.Background())
	eventstore.SnapshotAcceptanceTest(t, store, context.Background())
}

func TestEventStoreDuplicateEventIDIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := mongoutils.NewTestClient(t)

	store, err := NewEventStoreWithClient(client, mongoutils.RandomDBName(t))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer store.Close()

	ctx := context.Background()
	event1 := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, time.Now(), 1, 1, 1)

	if err := store.Save(ctx, []eventlog.Event{event1}, 0); err != nil {
		t.Fatal("there should be no error:", err)
	}

	// Same event ID stored for another customer.
	event2 := eventlog.NewEvent(customer.PhoneRemoved, nil, time.Now(),
		eventlog.ForCustomer(2, 1, 1), eventlog.WithEventID(event1.EventID()))

	err = store.Save(ctx, []eventlog.Event{event2}, 0)
	if !errors.Is(err, eventlog.ErrEventConflictFromOtherSave) {
		t.Error("there should be a conflict error:", err)
	}

	if v, err := store.CurrentVersion(ctx, 2); err != nil || v != 0 {
		t.Error("nothing should be stored:", v, err)
	}
}

func TestWithCollectionNamesIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := mongoutils.NewTestClient(t)
	db := mongoutils.RandomDBName(t)

	store, err := NewEventStoreWithClient(client, db,
		WithCollectionNames("foo-events", "foo-streams"),
		WithSnapshotCollectionName("foo-snapshots"),
	)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer store.Close()

	if store.events.Name() != "foo-events" {
		t.Error("events collection should use custom collection name")
	}

	if store.streams.Name() != "foo-streams" {
		t.Error("streams collection should use custom collection name")
	}

	if store.snapshots.Name() != "foo-snapshots" {
		t.Error("snapshots collection should use custom collection name")
	}

	// Invalid and equal names.
	if _, err := NewEventStoreWithClient(client, db, WithCollectionNames("", "streams")); err == nil ||
		!errors.Is(err, mongoutils.ErrMissingCollectionName) {
		t.Error("there should be a missing name error:", err)
	}

	if _, err := NewEventStoreWithClient(client, db, WithCollectionNames("same", "same")); err == nil ||
		!errors.Is(err, mongoutils.ErrDuplicateCollectionName) {
		t.Error("there should be a duplicate name error:", err)
	}
}

func TestCompress(t *testing.T) {
	state := []byte(`{"id":1,"first_name":"John"}`)

	data, err := compress(state)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	decompressed, err := decompress(data)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if string(decompressed) != string(state) {
		t.Error("the state should be correct:", string(decompressed))
	}

	if _, err := decompress([]byte("not gzip")); err == nil {
		t.Error("there should be an error")
	}
}
