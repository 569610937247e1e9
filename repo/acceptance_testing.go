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

// Package repo holds the acceptance test of the customer projection repos.
package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplab/eventlog/customer"
)

// AcceptanceTest is the acceptance test that all implementations of
// customer.Repository should pass. It should manually be called from a test
// case in each implementation:
//
//	func TestRepo(t *testing.T) {
//	    db, _ := NewDB()
//	    repo.AcceptanceTest(t, db.NewRepo, context.Background())
//	}
//
// Every call of newRepo should return a repo for a new unit of work, all using
// the same empty storage.
func AcceptanceTest(t *testing.T, newRepo func() customer.Repository, ctx context.Context) {
	// Allocate IDs.
	r := newRepo()

	id1, err := r.NextID(ctx)
	require.NoError(t, err)

	id2, err := r.NextID(ctx)
	require.NoError(t, err)

	if id1 < 1 || id2 <= id1 {
		t.Error("the IDs should be increasing:", id1, id2)
	}

	// Find non-existing customer.
	c, err := r.Find(ctx, id1)
	if !errors.Is(err, customer.ErrNotFound) {
		t.Error("there should be a not found error:", err)
	}

	if c != nil {
		t.Error("there should be no customer:", c)
	}

	// Save without changes.
	if err := r.Save(ctx); err != nil {
		t.Error("there should be no error:", err)
	}

	// Add a customer.
	c1, err := customer.Create(id1, "John", "Doe", "john@example.com")
	require.NoError(t, err)

	r.Add(c1)
	require.NoError(t, r.Save(ctx))
	c1.ClearUncommittedEvents()

	r = newRepo()

	found, err := r.Find(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, c1.State(), found.State())
	assert.Equal(t, 1, found.PersistedVersion())

	// Adding the same customer again is a conflict.
	dup, err := customer.Create(id1, "Jane", "Doe", "jane@example.com")
	require.NoError(t, err)

	r.Add(dup)

	if err := r.Save(ctx); !errors.Is(err, customer.ErrConcurrencyConflict) {
		t.Error("there should be a conflict error:", err)
	}

	// Update a customer.
	r = newRepo()

	found, err = r.Find(ctx, id1)
	require.NoError(t, err)
	require.NoError(t, found.ChangeEmail("john.doe@example.com"))
	require.NoError(t, found.Verify())

	r.Update(found)
	require.NoError(t, r.Save(ctx))
	found.ClearUncommittedEvents()

	r = newRepo()

	updated, err := r.Find(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, found.State(), updated.State())
	assert.Equal(t, 3, updated.Version())
	assert.Equal(t, 4, updated.Sequence())

	// Concurrent updates, the second writer conflicts.
	r1, r2 := newRepo(), newRepo()

	first, err := r1.Find(ctx, id1)
	require.NoError(t, err)

	second, err := r2.Find(ctx, id1)
	require.NoError(t, err)

	require.NoError(t, first.UpdateName("Jane", "Doe"))
	require.NoError(t, second.UpdateName("Jim", "Doe"))

	r1.Update(first)
	require.NoError(t, r1.Save(ctx))

	r2.Update(second)

	if err := r2.Save(ctx); !errors.Is(err, customer.ErrConcurrencyConflict) {
		t.Error("there should be a conflict error:", err)
	}

	stored, err := newRepo().Find(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Jane", stored.Name().First())
	assert.Equal(t, 4, stored.Version())

	// A conflict writes nothing of the unit of work.
	c2, err := customer.Create(id2, "Anna", "Doe", "anna@example.com")
	require.NoError(t, err)

	r = newRepo()
	r.Add(c2)
	r.Update(second)

	if err := r.Save(ctx); !errors.Is(err, customer.ErrConcurrencyConflict) {
		t.Error("there should be a conflict error:", err)
	}

	if _, err := newRepo().Find(ctx, id2); !errors.Is(err, customer.ErrNotFound) {
		t.Error("the added customer should not be saved:", err)
	}

	// Updating a customer that does not exist.
	r = newRepo()
	r.Update(c2)

	if err := r.Save(ctx); err == nil {
		t.Error("there should be an error")
	}
}
