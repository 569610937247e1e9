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

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/looplab/eventlog/aggregatestore"
	"github.com/looplab/eventlog/cmd/customerd/internal/config"
	"github.com/looplab/eventlog/commandhandler"
	"github.com/looplab/eventlog/customer"
	"github.com/looplab/eventlog/eventstore/memory"
	repoMemory "github.com/looplab/eventlog/repo/memory"
)

func newTestApp(t *testing.T) (*app, *repoMemory.DB) {
	t.Helper()

	es := memory.NewEventStore()

	store, err := aggregatestore.New(es, aggregatestore.WithSnapshotStore(es))
	require.NoError(t, err)

	db, err := repoMemory.NewDB()
	require.NoError(t, err)

	h, err := commandhandler.NewHandler(db.NewRepo, store)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = h.HandleCommand(ctx, commandhandler.Create{Details: customer.Details{
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
	}})
	require.NoError(t, err)

	_, err = h.HandleCommand(ctx, commandhandler.Verify{Target: commandhandler.Target{ID: 1}})
	require.NoError(t, err)

	return &app{logger: zap.NewNop(), store: store, handler: h}, db
}

func TestRunUsage(t *testing.T) {
	cfg := &config.Config{}

	for _, args := range [][]string{
		{"unknown"},
		{"history"},
		{"history", "abc"},
		{"rebuild", "0"},
		{"snapshot", "1", "2"},
	} {
		if err := run(cfg, zap.NewNop(), args); !errors.Is(err, errUsage) {
			t.Errorf("there should be a usage error for %v: %v", args, err)
		}
	}
}

func TestHistory(t *testing.T) {
	a, _ := newTestApp(t)

	var buf bytes.Buffer
	require.NoError(t, a.history(context.Background(), &buf, 1))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "customer 1 at v2, 3 events\n"), out)
	assert.Contains(t, out, string(customer.Created))
	assert.Contains(t, out, string(customer.Verified))
	assert.Contains(t, out, "john@example.com")

	if err := a.history(context.Background(), &buf, 2); !errors.Is(err, customer.ErrNotFound) {
		t.Error("there should be a not found error:", err)
	}
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	a, db := newTestApp(t)

	var buf bytes.Buffer
	require.NoError(t, a.rebuild(ctx, &buf, 1))
	assert.Contains(t, buf.String(), "projection matches the event log")

	// Change the projection without appending the events.
	c, err := db.NewRepo().Find(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, c.UpdateName("Jane", "Doe"))

	r := db.NewRepo()
	r.Update(c)
	require.NoError(t, r.Save(ctx))

	buf.Reset()

	if err := a.rebuild(ctx, &buf, 1); !errors.Is(err, errProjectionDiffers) {
		t.Error("there should be a projection differs error:", err)
	}

	assert.Contains(t, buf.String(), "projection -> log:")
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)

	require.NoError(t, a.snapshot(ctx, 1))

	s, err := a.store.LatestSnapshot(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Version)
	assert.Equal(t, 3, s.Sequence)

	if err := a.snapshot(ctx, 2); !errors.Is(err, customer.ErrNotFound) {
		t.Error("there should be a not found error:", err)
	}
}
