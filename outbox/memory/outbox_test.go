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
	"time"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/aggregatestore"
	"github.com/looplab/eventlog/customer"
	"github.com/looplab/eventlog/eventstore/memory"
	"github.com/looplab/eventlog/outbox"
)

func newAppender(t *testing.T) *aggregatestore.EventStore {
	t.Helper()

	s, err := aggregatestore.New(memory.NewEventStore())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	return s
}

func TestOutbox(t *testing.T) {
	a := newAppender(t)

	o, err := NewOutbox(a, outbox.WithSchedule("* * * * * * *"))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	outbox.AcceptanceTest(t, o, a, context.Background())
}

func TestNewOutbox(t *testing.T) {
	if _, err := NewOutbox(nil); err == nil {
		t.Error("there should be an error")
	}

	if _, err := NewOutbox(newAppender(t), outbox.WithSchedule("not cron")); err == nil {
		t.Error("there should be an error")
	}
}

func TestOutboxCopiesCommits(t *testing.T) {
	a := newAppender(t)
	ctx := context.Background()

	o, err := NewOutbox(a)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	data := &customer.CreatedData{FirstName: "John", LastName: "Doe", Email: "john@example.com"}
	event := eventlog.NewEventForCustomer(customer.Created, data, time.Now(), 1, 1, 1)

	commit, err := eventlog.NewCommit(0, []eventlog.Event{event})
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Stage(ctx, commit); err != nil {
		t.Fatal("there should be no error:", err)
	}

	data.FirstName = "Changed"

	if err := o.Process(ctx, commit.ID); err != nil {
		t.Fatal("there should be no error:", err)
	}

	events, err := a.Events(ctx, 1)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if d, ok := events[0].Data().(*customer.CreatedData); !ok || d.FirstName != "John" {
		t.Error("the staged data should not change:", events[0].Data())
	}
}

func TestOutboxStageIsAtomic(t *testing.T) {
	ctx := context.Background()

	o, err := NewOutbox(newAppender(t))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	event1 := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, time.Now(), 1, 1, 1)
	commit1, _ := eventlog.NewCommit(0, []eventlog.Event{event1})

	event2 := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, time.Now(), 2, 1, 1)
	commit2, _ := eventlog.NewCommit(0, []eventlog.Event{event2})

	if err := o.Stage(ctx, commit1); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Stage(ctx, commit2, commit1); !errors.Is(err, outbox.ErrCommitAlreadyStaged) {
		t.Error("there should be a commit already staged error:", err)
	}

	staged, err := o.Staged(ctx)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(staged) != 1 || staged[0].ID != commit1.ID {
		t.Error("only the first commit should be staged:", staged)
	}
}
