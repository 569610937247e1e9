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

// Package mongodb is an outbox for MongoDB. Commits are staged in the
// transaction of the projection repo, which must use the same client.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/looplab/eventlog"
	jsonCodec "github.com/looplab/eventlog/codec/json"
	"github.com/looplab/eventlog/outbox"
)

// DefaultCollection is the default outbox collection.
const DefaultCollection = "outbox"

// Outbox implements an eventlog.Outbox for MongoDB.
type Outbox struct {
	*outbox.Relay

	client       *mongo.Client
	outbox       *mongo.Collection
	appender     eventlog.Appender
	codec        *jsonCodec.EventCodec
	relayOptions []outbox.Option
}

// NewOutboxWithClient creates a new Outbox with a client, appending commits
// with the appender.
func NewOutboxWithClient(client *mongo.Client, dbName string, appender eventlog.Appender, opts ...Option) (*Outbox, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	if appender == nil {
		return nil, fmt.Errorf("missing appender")
	}

	o := &Outbox{
		client:   client,
		outbox:   client.Database(dbName).Collection(DefaultCollection),
		appender: appender,
		codec:    &jsonCodec.EventCodec{},
	}

	for _, option := range opts {
		if err := option(o); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	relay, err := outbox.NewRelay(o, o.relayOptions...)
	if err != nil {
		return nil, err
	}

	o.Relay = relay

	ctx := context.Background()

	if err := o.client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	if _, err := o.outbox.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "expected_version", Value: 1}},
	}); err != nil {
		return nil, fmt.Errorf("could not ensure outbox index: %w", err)
	}

	return o, nil
}

// Client returns the MongoDB client used by the outbox. To stage commits in
// the transaction of a repo it needs to be created with the same client.
func (o *Outbox) Client() *mongo.Client {
	return o.client
}

// outboxDoc is the DB representation of an outbox entry.
type outboxDoc struct {
	ID              string    `bson:"_id"`
	CustomerID      int       `bson:"customer_id"`
	ExpectedVersion int       `bson:"expected_version"`
	Events          []string  `bson:"events"`
	Attempts        int       `bson:"attempts"`
	RetryAt         time.Time `bson:"retry_at"`
	Dead            bool      `bson:"dead"`
	CreatedAt       time.Time `bson:"created_at"`
}

// Stage implements the Stage method of the eventlog.Outbox interface. The
// commits are inserted in the transaction of the session in ctx, if any.
func (o *Outbox) Stage(ctx context.Context, commits ...eventlog.Commit) error {
	if len(commits) == 0 {
		return nil
	}

	docs := make([]interface{}, len(commits))
	now := time.Now().UTC()

	for i := range commits {
		c := &commits[i]

		events := make([]string, len(c.Events))
		for j, event := range c.Events {
			b, err := o.codec.MarshalEvent(event)
			if err != nil {
				return &eventlog.OutboxError{
					Err:    fmt.Errorf("could not marshal event: %w", err),
					Ctx:    ctx,
					Commit: c,
				}
			}

			events[j] = string(b)
		}

		docs[i] = &outboxDoc{
			ID:              c.ID.String(),
			CustomerID:      c.CustomerID,
			ExpectedVersion: c.ExpectedVersion,
			Events:          events,
			CreatedAt:       now,
		}
	}

	if _, err := o.outbox.InsertMany(ctx, docs); mongo.IsDuplicateKeyError(err) {
		return &eventlog.OutboxError{
			Err: fmt.Errorf("%w: %s", outbox.ErrCommitAlreadyStaged, err),
			Ctx: ctx,
		}
	} else if err != nil {
		return &eventlog.OutboxError{
			Err: fmt.Errorf("could not stage commits: %w", err),
			Ctx: ctx,
		}
	}

	return nil
}

// Process implements the Process method of the eventlog.Outbox interface.
func (o *Outbox) Process(ctx context.Context, id uuid.UUID) error {
	var doc outboxDoc
	if err := o.outbox.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); errors.Is(err, mongo.ErrNoDocuments) {
		return &eventlog.OutboxError{
			Err: fmt.Errorf("%w: %s", eventlog.ErrCommitNotFound, id),
			Ctx: ctx,
		}
	} else if err != nil {
		return &eventlog.OutboxError{
			Err: fmt.Errorf("could not find commit: %w", err),
			Ctx: ctx,
		}
	}

	c, err := o.commit(&doc)
	if err != nil {
		return &eventlog.OutboxError{
			Err: err,
			Ctx: ctx,
		}
	}

	if err := eventlog.AppendCommit(ctx, o.appender, c); err != nil {
		return &eventlog.OutboxError{
			Err:    err,
			Ctx:    ctx,
			Commit: &c,
		}
	}

	if _, err := o.outbox.DeleteOne(ctx, bson.M{"_id": doc.ID}); err != nil {
		return &eventlog.OutboxError{
			Err:    fmt.Errorf("could not delete commit: %w", err),
			Ctx:    ctx,
			Commit: &c,
		}
	}

	return nil
}

// Staged implements the Staged method of the outbox.Source interface.
func (o *Outbox) Staged(ctx context.Context) ([]outbox.StagedCommit, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "customer_id", Value: 1}, {Key: "expected_version", Value: 1}}).
		SetProjection(bson.M{"events": 0})

	cursor, err := o.outbox.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("could not find commits: %w", err)
	}
	defer cursor.Close(ctx)

	var staged []outbox.StagedCommit

	for cursor.Next(ctx) {
		var doc outboxDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("could not decode commit: %w", err)
		}

		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, fmt.Errorf("could not parse commit ID: %w", err)
		}

		staged = append(staged, outbox.StagedCommit{
			ID:              id,
			CustomerID:      doc.CustomerID,
			ExpectedVersion: doc.ExpectedVersion,
			Attempts:        doc.Attempts,
			RetryAt:         doc.RetryAt,
			Dead:            doc.Dead,
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("could not find commits: %w", err)
	}

	return staged, nil
}

// Reschedule implements the Reschedule method of the outbox.Source interface.
func (o *Outbox) Reschedule(ctx context.Context, c outbox.StagedCommit) error {
	res, err := o.outbox.UpdateOne(ctx,
		bson.M{"_id": c.ID.String()},
		bson.M{"$set": bson.M{
			"attempts": c.Attempts,
			"retry_at": c.RetryAt,
			"dead":     c.Dead,
		}},
	)
	if err != nil {
		return fmt.Errorf("could not update commit: %w", err)
	} else if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", eventlog.ErrCommitNotFound, c.ID)
	}

	return nil
}

func (o *Outbox) commit(doc *outboxDoc) (eventlog.Commit, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return eventlog.Commit{}, fmt.Errorf("could not parse commit ID: %w", err)
	}

	events := make([]eventlog.Event, len(doc.Events))

	for i, raw := range doc.Events {
		if events[i], err = o.codec.UnmarshalEvent([]byte(raw)); err != nil {
			return eventlog.Commit{}, fmt.Errorf("could not unmarshal event: %w", err)
		}
	}

	return eventlog.Commit{
		ID:              id,
		CustomerID:      doc.CustomerID,
		ExpectedVersion: doc.ExpectedVersion,
		Events:          events,
	}, nil
}
