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

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/aggregatestore"
	"github.com/looplab/eventlog/customer"
	eventStore "github.com/looplab/eventlog/eventstore/memory"
	"github.com/looplab/eventlog/outbox/memory"
	"github.com/looplab/eventlog/repo"
)

func TestRepo(t *testing.T) {
	db, err := NewDB()
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	repo.AcceptanceTest(t, db.NewRepo, context.Background())
}

func TestRepoCancelledContext(t *testing.T) {
	db, err := NewDB()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := db.NewRepo()

	if _, err := r.NextID(ctx); !errors.Is(err, context.Canceled) {
		t.Error("there should be a cancelled error:", err)
	}
}

func TestRepoWithOutbox(t *testing.T) {
	ctx := context.Background()

	a, err := aggregatestore.New(eventStore.NewEventStore())
	require.NoError(t, err)

	o, err := memory.NewOutbox(a)
	require.NoError(t, err)

	if _, err := NewDB(WithOutbox(nil)); err == nil {
		t.Error("there should be an error")
	}

	db, err := NewDB(WithOutbox(o))
	require.NoError(t, err)

	c, err := customer.Create(1, "John", "Doe", "john@example.com")
	require.NoError(t, err)

	r := db.NewRepo()
	r.Add(c)
	require.NoError(t, r.Save(ctx))

	staged, err := o.Staged(ctx)
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, c.UncommittedEvents()[0].EventID(), staged[0].ID)
	assert.Equal(t, 1, staged[0].CustomerID)
	assert.Equal(t, 0, staged[0].ExpectedVersion)

	require.NoError(t, o.Process(ctx, staged[0].ID))

	events, err := a.Events(ctx, 1)
	require.NoError(t, err)

	if !eventlog.CompareEventSlices(events, c.UncommittedEvents()) {
		t.Error("the staged events should be appended")
	}

	c.ClearUncommittedEvents()

	// A conflicting save stages nothing.
	stale, err := db.NewRepo().Find(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, c.UpdateName("Jane", "Doe"))
	r = db.NewRepo()
	r.Update(c)
	require.NoError(t, r.Save(ctx))

	require.NoError(t, stale.UpdateName("Jim", "Doe"))
	r = db.NewRepo()
	r.Update(stale)

	if err := r.Save(ctx); !errors.Is(err, customer.ErrConcurrencyConflict) {
		t.Error("there should be a conflict error:", err)
	}

	staged, err = o.Staged(ctx)
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, 1, staged[0].ExpectedVersion)
}
