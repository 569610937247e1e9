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

// Package memory is an in memory projection of customers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

// DB is the in memory storage shared by all repos.
type DB struct {
	customers map[int]customer.State
	nextID    int
	mu        sync.Mutex
	outbox    eventlog.Outbox
}

// Option is an option setter used to configure creation.
type Option func(*DB) error

// WithOutbox stages the events of saved customers in the outbox.
func WithOutbox(o eventlog.Outbox) Option {
	return func(db *DB) error {
		if o == nil {
			return fmt.Errorf("nil outbox")
		}

		db.outbox = o

		return nil
	}
}

// NewDB creates a new DB.
func NewDB(options ...Option) (*DB, error) {
	db := &DB{
		customers: map[int]customer.State{},
	}

	for _, option := range options {
		if err := option(db); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return db, nil
}

// NewRepo creates a repo for one unit of work.
func (db *DB) NewRepo() customer.Repository {
	return &Repo{db: db}
}

// Repo implements customer.Repository in memory.
type Repo struct {
	db      *DB
	added   []*customer.Customer
	updated []*customer.Customer
}

// NextID implements the NextID method of the customer.Repository interface.
func (r *Repo) NextID(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.nextID++

	return r.db.nextID, nil
}

// Find implements the Find method of the customer.Repository interface.
func (r *Repo) Find(ctx context.Context, id int) (*customer.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.db.mu.Lock()
	s, ok := r.db.customers[id]
	r.db.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", customer.ErrNotFound, id)
	}

	return customer.FromState(s)
}

// Add implements the Add method of the customer.Repository interface.
func (r *Repo) Add(c *customer.Customer) {
	r.added = append(r.added, c)
}

// Update implements the Update method of the customer.Repository interface.
func (r *Repo) Update(c *customer.Customer) {
	r.updated = append(r.updated, c)
}

// Save implements the Save method of the customer.Repository interface.
func (r *Repo) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(r.added) == 0 && len(r.updated) == 0 {
		return nil
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	// Check all concurrency tokens before writing anything.
	for _, c := range r.added {
		if _, ok := r.db.customers[c.ID()]; ok {
			return fmt.Errorf("%w: customer %d already exists", customer.ErrConcurrencyConflict, c.ID())
		}
	}

	for _, c := range r.updated {
		s, ok := r.db.customers[c.ID()]
		if !ok {
			return fmt.Errorf("%w: %d", customer.ErrNotFound, c.ID())
		}

		if s.Version != c.PersistedVersion() {
			return fmt.Errorf("%w: customer %d is at v%d, expected v%d",
				customer.ErrConcurrencyConflict, c.ID(), s.Version, c.PersistedVersion())
		}
	}

	all := append(append([]*customer.Customer{}, r.added...), r.updated...)

	if r.db.outbox != nil {
		var commits []eventlog.Commit

		for _, c := range all {
			if len(c.UncommittedEvents()) == 0 {
				continue
			}

			commit, err := eventlog.NewCommit(c.PersistedVersion(), c.UncommittedEvents())
			if err != nil {
				return fmt.Errorf("could not create commit: %w", err)
			}

			commits = append(commits, commit)
		}

		if err := r.db.outbox.Stage(ctx, commits...); err != nil {
			return fmt.Errorf("could not stage commits: %w", err)
		}
	}

	for _, c := range all {
		r.db.customers[c.ID()] = c.State()
	}

	r.added = nil
	r.updated = nil

	return nil
}
