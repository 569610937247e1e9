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

// Package mongodb is a projection of customers in MongoDB. A unit of work is
// saved in a multi-document transaction, together with the outbox if used.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

// Default collection names.
const (
	DefaultCustomersCollection = "customers"
	DefaultCountersCollection  = "counters"
)

// customerCounterID is the counter document of the customer IDs.
const customerCounterID = "customer_id"

// DB is the MongoDB storage shared by all repos.
type DB struct {
	client    *mongo.Client
	customers *mongo.Collection
	counters  *mongo.Collection
	outbox    eventlog.Outbox
}

// NewDB creates a new DB with a client.
func NewDB(client *mongo.Client, dbName string, opts ...Option) (*DB, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	d := client.Database(dbName)
	db := &DB{
		client:    client,
		customers: d.Collection(DefaultCustomersCollection),
		counters:  d.Collection(DefaultCountersCollection),
	}

	for _, option := range opts {
		if err := option(db); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	if err := client.Ping(context.Background(), readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	return db, nil
}

// NewRepo creates a repo for one unit of work.
func (db *DB) NewRepo() customer.Repository {
	return &Repo{db: db}
}

// Repo implements customer.Repository for MongoDB.
type Repo struct {
	db      *DB
	added   []*customer.Customer
	updated []*customer.Customer
}

// NextID implements the NextID method of the customer.Repository interface.
func (r *Repo) NextID(ctx context.Context) (int, error) {
	var counter struct {
		Seq int `bson:"seq"`
	}

	if err := r.db.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": customerCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter); err != nil {
		return 0, fmt.Errorf("could not allocate customer ID: %w", err)
	}

	return counter.Seq, nil
}

// Find implements the Find method of the customer.Repository interface.
func (r *Repo) Find(ctx context.Context, id int) (*customer.Customer, error) {
	var s customer.State
	if err := r.db.customers.FindOne(ctx, bson.M{"_id": id}).Decode(&s); errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %d", customer.ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("could not find customer %d: %w", id, err)
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
	if len(r.added) == 0 && len(r.updated) == 0 {
		return nil
	}

	sess, err := r.db.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}

	defer sess.EndSession(ctx)

	if _, err := sess.WithTransaction(ctx, func(txCtx context.Context) (interface{}, error) {
		return nil, r.save(txCtx)
	}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", customer.ErrConcurrencyConflict, err)
		}

		return err
	}

	r.added = nil
	r.updated = nil

	return nil
}

func (r *Repo) save(ctx context.Context) error {
	for _, c := range r.added {
		if _, err := r.db.customers.InsertOne(ctx, c.State()); err != nil {
			return fmt.Errorf("could not insert customer %d: %w", c.ID(), err)
		}
	}

	for _, c := range r.updated {
		res, err := r.db.customers.ReplaceOne(ctx,
			bson.M{
				"_id":     c.ID(),
				"version": c.PersistedVersion(),
			},
			c.State(),
		)
		if err != nil {
			return fmt.Errorf("could not update customer %d: %w", c.ID(), err)
		}

		if res.MatchedCount == 0 {
			n, err := r.db.customers.CountDocuments(ctx, bson.M{"_id": c.ID()})
			if err != nil {
				return fmt.Errorf("could not find customer %d: %w", c.ID(), err)
			}

			if n == 0 {
				return fmt.Errorf("%w: %d", customer.ErrNotFound, c.ID())
			}

			return fmt.Errorf("%w: customer %d is not at v%d",
				customer.ErrConcurrencyConflict, c.ID(), c.PersistedVersion())
		}
	}

	if r.db.outbox == nil {
		return nil
	}

	var commits []eventlog.Commit

	for _, c := range append(append([]*customer.Customer{}, r.added...), r.updated...) {
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

	return nil
}
