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

// Package memory is an in memory outbox, for tests and single process use
// together with the memory event store and projection repo.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/outbox"
)

// Outbox implements an eventlog.Outbox in memory.
type Outbox struct {
	*outbox.Relay

	appender eventlog.Appender
	db       map[uuid.UUID]*outboxDoc
	dbMu     sync.RWMutex
}

// outboxDoc is the stored representation of an outbox entry.
type outboxDoc struct {
	Commit    eventlog.Commit
	State     outbox.StagedCommit
	CreatedAt time.Time
}

// NewOutbox creates a new Outbox appending commits with the appender.
func NewOutbox(appender eventlog.Appender, options ...outbox.Option) (*Outbox, error) {
	if appender == nil {
		return nil, fmt.Errorf("missing appender")
	}

	o := &Outbox{
		appender: appender,
		db:       map[uuid.UUID]*outboxDoc{},
	}

	relay, err := outbox.NewRelay(o, options...)
	if err != nil {
		return nil, err
	}

	o.Relay = relay

	return o, nil
}

// Stage implements the Stage method of the eventlog.Outbox interface. All
// commits are staged or none of them.
func (o *Outbox) Stage(ctx context.Context, commits ...eventlog.Commit) error {
	docs := make([]*outboxDoc, 0, len(commits))

	for i := range commits {
		c, err := copyCommit(commits[i])
		if err != nil {
			return &eventlog.OutboxError{
				Err:    fmt.Errorf("could not copy commit: %w", err),
				Ctx:    ctx,
				Commit: &commits[i],
			}
		}

		docs = append(docs, &outboxDoc{
			Commit: c,
			State: outbox.StagedCommit{
				ID:              c.ID,
				CustomerID:      c.CustomerID,
				ExpectedVersion: c.ExpectedVersion,
			},
			CreatedAt: time.Now(),
		})
	}

	o.dbMu.Lock()
	defer o.dbMu.Unlock()

	seen := map[uuid.UUID]bool{}

	for i, d := range docs {
		if _, ok := o.db[d.Commit.ID]; ok || seen[d.Commit.ID] {
			return &eventlog.OutboxError{
				Err:    outbox.ErrCommitAlreadyStaged,
				Ctx:    ctx,
				Commit: &commits[i],
			}
		}

		seen[d.Commit.ID] = true
	}

	for _, d := range docs {
		o.db[d.Commit.ID] = d
	}

	return nil
}

// Process implements the Process method of the eventlog.Outbox interface.
func (o *Outbox) Process(ctx context.Context, id uuid.UUID) error {
	o.dbMu.RLock()
	d, ok := o.db[id]
	o.dbMu.RUnlock()

	if !ok {
		return &eventlog.OutboxError{
			Err: fmt.Errorf("%w: %s", eventlog.ErrCommitNotFound, id),
			Ctx: ctx,
		}
	}

	c := d.Commit

	if err := eventlog.AppendCommit(ctx, o.appender, c); err != nil {
		return &eventlog.OutboxError{
			Err:    err,
			Ctx:    ctx,
			Commit: &c,
		}
	}

	o.dbMu.Lock()
	delete(o.db, id)
	o.dbMu.Unlock()

	return nil
}

// Staged implements the Staged method of the outbox.Source interface.
func (o *Outbox) Staged(ctx context.Context) ([]outbox.StagedCommit, error) {
	o.dbMu.RLock()
	defer o.dbMu.RUnlock()

	staged := make([]outbox.StagedCommit, 0, len(o.db))
	for _, d := range o.db {
		staged = append(staged, d.State)
	}

	sort.Slice(staged, func(i, j int) bool {
		if staged[i].CustomerID != staged[j].CustomerID {
			return staged[i].CustomerID < staged[j].CustomerID
		}

		return staged[i].ExpectedVersion < staged[j].ExpectedVersion
	})

	return staged, nil
}

// Reschedule implements the Reschedule method of the outbox.Source interface.
func (o *Outbox) Reschedule(ctx context.Context, c outbox.StagedCommit) error {
	o.dbMu.Lock()
	defer o.dbMu.Unlock()

	d, ok := o.db[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", eventlog.ErrCommitNotFound, c.ID)
	}

	d.State = c

	return nil
}

// copyCommit duplicates a commit and its events.
func copyCommit(c eventlog.Commit) (eventlog.Commit, error) {
	events := make([]eventlog.Event, len(c.Events))

	for i, event := range c.Events {
		var data eventlog.EventData

		// Copy data if there is any.
		if event.Data() != nil {
			var err error
			if data, err = eventlog.CreateEventData(event.EventType()); err != nil {
				return eventlog.Commit{}, fmt.Errorf("could not create event data: %w", err)
			}

			if err := copier.Copy(data, event.Data()); err != nil {
				return eventlog.Commit{}, fmt.Errorf("could not copy event data: %w", err)
			}
		}

		events[i] = eventlog.NewEvent(
			event.EventType(),
			data,
			event.OccurredOn(),
			eventlog.ForCustomer(event.CustomerID(), event.Version(), event.Sequence()),
			eventlog.WithEventID(event.EventID()),
		)
	}

	c.Events = events

	return c, nil
}
