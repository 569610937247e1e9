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

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kr/pretty"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

// AcceptanceTest is the acceptance test that all implementations of Outbox
// should pass. It should manually be called from a test case in each
// implementation:
//
//	func TestOutbox(t *testing.T) {
//	    store := memory.NewEventStore()
//	    o, _ := NewOutbox(store, outbox.WithSchedule("* * * * * * *"))
//	    outbox.AcceptanceTest(t, o, store, context.Background())
//	}
//
// The outbox must append to the given appender, which is expected to be empty.
// It should sweep every second and not be started, the test starts and closes
// it.
func AcceptanceTest(t *testing.T, o eventlog.Outbox, a eventlog.Appender, ctx context.Context) {
	// Processing an unknown commit.
	err := o.Process(ctx, uuid.New())
	if !errors.Is(err, eventlog.ErrCommitNotFound) {
		t.Error("there should be a commit not found error:", err)
	}

	// Stage and process a commit.
	c1, err := customer.Create(1, "John", "Doe", "john@example.com")
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := c1.ChangeEmail("john.doe@example.com"); err != nil {
		t.Fatal("there should be no error:", err)
	}

	commit1, err := eventlog.NewCommit(0, c1.UncommittedEvents())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Stage(ctx, commit1); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Stage(ctx, commit1); !errors.Is(err, ErrCommitAlreadyStaged) {
		t.Error("there should be a commit already staged error:", err)
	}

	if err := o.Process(ctx, commit1.ID); err != nil {
		t.Error("there should be no error:", err)
	}

	events, err := a.EventsFromVersion(ctx, 1, 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if !eventlog.CompareEventSlices(events, commit1.Events) {
		t.Error("the events should be correct:")
		t.Log(pretty.Sprint(events))
	}

	if err := o.Process(ctx, commit1.ID); !errors.Is(err, eventlog.ErrCommitNotFound) {
		t.Error("a processed commit should be removed:", err)
	}

	c1.ClearUncommittedEvents()

	// A commit that is already in the log counts as processed.
	if err := c1.UpdateName("Jane", "Doe"); err != nil {
		t.Fatal("there should be no error:", err)
	}

	commit2, err := eventlog.NewCommit(2, c1.UncommittedEvents())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := a.AppendEvents(ctx, 1, commit2.Events, 2); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Stage(ctx, commit2); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Process(ctx, commit2.ID); err != nil {
		t.Error("there should be no error:", err)
	}

	if events, err := a.EventsFromVersion(ctx, 1, 0); err != nil || len(events) != 3 {
		t.Error("the commit should only be appended once:", events, err)
	}

	c1.ClearUncommittedEvents()

	// A conflicting commit stays staged.
	stale := eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, commit2.Events[0].OccurredOn(), 1, 3, 3)

	commit3, err := eventlog.NewCommit(2, []eventlog.Event{stale})
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Stage(ctx, commit3); err != nil {
		t.Fatal("there should be no error:", err)
	}

	for i := 0; i < 2; i++ {
		err := o.Process(ctx, commit3.ID)
		if !errors.Is(err, eventlog.ErrEventConflictFromOtherSave) {
			t.Error("there should be a conflict error:", err)
		}

		outboxErr := &eventlog.OutboxError{}
		if !errors.As(err, &outboxErr) || outboxErr.Commit == nil || outboxErr.Commit.ID != commit3.ID {
			t.Error("the error should contain the commit:", err)
		}
	}

	// The relay appends staged commits.
	c2, err := customer.Create(2, "Jim", "Doe", "jim@example.com")
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	commit4, err := eventlog.NewCommit(0, c2.UncommittedEvents())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := o.Stage(ctx, commit4); err != nil {
		t.Fatal("there should be no error:", err)
	}

	o.Start()

	deadline := time.Now().Add(5 * time.Second)

	for {
		events, err := a.EventsFromVersion(ctx, 2, 0)
		if err == nil && len(events) == 1 {
			if !eventlog.CompareEventSlices(events, commit4.Events) {
				t.Error("the relayed events should be correct:")
				t.Log(pretty.Sprint(events))
			}

			break
		}

		if time.Now().After(deadline) {
			t.Error("the relay should append the commit in time")

			break
		}

		time.Sleep(100 * time.Millisecond)
	}

	// The relay reports the conflicting commit.
	select {
	case <-time.After(5 * time.Second):
		t.Error("there should be an async error")
	case err := <-o.Errors():
		outboxErr := &eventlog.OutboxError{}
		if !errors.Is(err, eventlog.ErrEventConflictFromOtherSave) ||
			!errors.As(err, &outboxErr) || outboxErr.Commit == nil || outboxErr.Commit.ID != commit3.ID {
			t.Error("incorrect error sent on outbox:", err)
		}
	}

	if err := o.Close(); err != nil {
		t.Error("there should be no error:", err)
	}
}
