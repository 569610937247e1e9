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

// Package aggregatestore is the customer facing event store. It appends and
// queries the event log of customers, rebuilds customers from the latest
// snapshot and the events after it and takes snapshots as the log grows.
package aggregatestore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

// ErrInvalidEventStore is when a store is created with a nil event store.
var ErrInvalidEventStore = errors.New("invalid event store")

// ErrNoSnapshotStore is when snapshots are used without a snapshot store.
var ErrNoSnapshotStore = errors.New("no snapshot store")

// DefaultSnapshotInterval is the number of versions between snapshots.
const DefaultSnapshotInterval = 10

// EventStore stores and loads customers using event sourcing.
type EventStore struct {
	store     eventlog.EventStore
	snapshots eventlog.SnapshotStore
	strategy  SnapshotStrategy
	logger    *zap.Logger
	metrics   Metrics
}

// Option is an option setter used to configure creation.
type Option func(*EventStore) error

// WithSnapshotStore enables snapshots, stored in the snapshot store.
func WithSnapshotStore(s eventlog.SnapshotStore) Option {
	return func(r *EventStore) error {
		if s == nil {
			return errors.New("nil snapshot store")
		}

		r.snapshots = s

		return nil
	}
}

// WithSnapshotStrategy sets when snapshots are taken, the default is every
// DefaultSnapshotInterval versions.
func WithSnapshotStrategy(s SnapshotStrategy) Option {
	return func(r *EventStore) error {
		if s == nil {
			return errors.New("nil snapshot strategy")
		}

		r.strategy = s

		return nil
	}
}

// WithLogger sets the logger, the default logs nothing.
func WithLogger(l *zap.Logger) Option {
	return func(r *EventStore) error {
		if l == nil {
			return errors.New("nil logger")
		}

		r.logger = l

		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(r *EventStore) error {
		if m == nil {
			return errors.New("nil metrics")
		}

		r.metrics = m

		return nil
	}
}

// New creates an event store for customers using the underlying event log.
func New(store eventlog.EventStore, options ...Option) (*EventStore, error) {
	if store == nil {
		return nil, ErrInvalidEventStore
	}

	r := &EventStore{
		store:    store,
		strategy: NewEveryNumberVersionsStrategy(DefaultSnapshotInterval),
		logger:   zap.NewNop(),
		metrics:  nopMetrics{},
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return r, nil
}

// CurrentVersion returns the current version of the customer, 0 if it has no
// events.
func (r *EventStore) CurrentVersion(ctx context.Context, id int) (int, error) {
	return r.store.CurrentVersion(ctx, id)
}

// AppendEvents appends the events of one or more operations on the customer.
// The append fails with eventlog.ErrEventConflictFromOtherSave if the current
// version is not expectedVersion. A snapshot is taken afterwards if the
// strategy says so, failing to take it is only logged.
func (r *EventStore) AppendEvents(ctx context.Context, id int, events []eventlog.Event, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		if e.CustomerID() != id {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrMismatchedEventCustomerIDs,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
				Version:    expectedVersion,
				Events:     events,
			}
		}
	}

	if err := r.store.Save(ctx, events, expectedVersion); err != nil {
		if errors.Is(err, eventlog.ErrEventConflictFromOtherSave) {
			r.metrics.ConcurrencyConflict()
		}

		return err
	}

	r.metrics.EventsAppended(len(events))

	newVersion := expectedVersion
	for _, e := range events {
		if e.Version() > newVersion {
			newVersion = e.Version()
		}
	}

	if r.snapshots != nil && r.strategy.ShouldTakeSnapshot(expectedVersion, newVersion) {
		r.takeSnapshot(ctx, id)
	}

	return nil
}

func (r *EventStore) takeSnapshot(ctx context.Context, id int) {
	c, err := r.Load(ctx, id)
	if err == nil {
		err = r.SaveSnapshot(ctx, c)
	}

	if err != nil {
		r.metrics.SnapshotFailed()
		r.logger.Warn("could not take snapshot", zap.Int("customer_id", id), zap.Error(err))

		return
	}

	r.logger.Debug("snapshot taken", zap.Int("customer_id", id), zap.Int("version", c.Version()))
}

// Events returns all events of the customer in version and sequence order,
// empty if there are none.
func (r *EventStore) Events(ctx context.Context, id int) ([]eventlog.Event, error) {
	events, err := r.store.Load(ctx, id)
	if errors.Is(err, eventlog.ErrCustomerNotFound) {
		return []eventlog.Event{}, nil
	} else if err != nil {
		return nil, err
	}

	customer.SortEvents(events)

	return events, nil
}

// EventsFromVersion returns the events with a version greater than
// fromVersion, in version and sequence order.
func (r *EventStore) EventsFromVersion(ctx context.Context, id int, fromVersion int) ([]eventlog.Event, error) {
	events, err := r.store.LoadFrom(ctx, id, fromVersion)
	if errors.Is(err, eventlog.ErrCustomerNotFound) {
		return []eventlog.Event{}, nil
	} else if err != nil {
		return nil, err
	}

	customer.SortEvents(events)

	return events, nil
}

// Load rebuilds the customer from its latest snapshot and the events after
// it, or from all events if there is no usable snapshot. Returns
// customer.ErrNotFound if the customer has no events.
func (r *EventStore) Load(ctx context.Context, id int) (*customer.Customer, error) {
	if c := r.loadFromSnapshot(ctx, id); c != nil {
		tail, err := r.EventsFromVersion(ctx, id, c.Version())
		if err != nil {
			return nil, err
		}

		if err := c.ApplyHistory(tail); err != nil {
			return nil, fmt.Errorf("could not apply events of customer %d: %w", id, err)
		}

		r.metrics.EventsReplayed(len(tail))

		return c, nil
	}

	events, err := r.store.Load(ctx, id)
	if errors.Is(err, eventlog.ErrCustomerNotFound) {
		return nil, fmt.Errorf("%w: %d", customer.ErrNotFound, id)
	} else if err != nil {
		return nil, err
	}

	c, err := customer.FromHistory(events)
	if err != nil {
		return nil, fmt.Errorf("could not apply events of customer %d: %w", id, err)
	}

	r.metrics.EventsReplayed(len(events))

	return c, nil
}

// loadFromSnapshot returns nil if there is no usable snapshot.
func (r *EventStore) loadFromSnapshot(ctx context.Context, id int) *customer.Customer {
	snapshot, err := r.LatestSnapshot(ctx, id)
	if err != nil {
		r.logger.Warn("could not load snapshot", zap.Int("customer_id", id), zap.Error(err))

		return nil
	}

	if snapshot == nil {
		return nil
	}

	c, err := customer.FromSnapshot(*snapshot)
	if err != nil {
		r.logger.Warn("could not restore snapshot",
			zap.Int("customer_id", id),
			zap.Int("version", snapshot.Version),
			zap.Error(err))

		return nil
	}

	return c
}

// LatestSnapshot returns the latest snapshot of the customer, nil if there is
// none or snapshots are not used.
func (r *EventStore) LatestSnapshot(ctx context.Context, id int) (*eventlog.Snapshot, error) {
	if r.snapshots == nil {
		return nil, nil
	}

	return r.snapshots.LoadSnapshot(ctx, id)
}

// SaveSnapshot stores a snapshot of the customer at its current version.
func (r *EventStore) SaveSnapshot(ctx context.Context, c *customer.Customer) error {
	if r.snapshots == nil {
		return ErrNoSnapshotStore
	}

	snapshot, err := c.Snapshot()
	if err != nil {
		return err
	}

	if err := r.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return err
	}

	r.metrics.SnapshotSaved()

	return nil
}

// Close closes the underlying event store.
func (r *EventStore) Close() error {
	return r.store.Close()
}
