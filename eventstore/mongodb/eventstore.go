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

// Package mongodb is an event store and snapshot store for MongoDB. Appends
// run in a multi-document transaction, which needs a replica set.
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
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/looplab/eventlog"
	jsonCodec "github.com/looplab/eventlog/codec/json"
	"github.com/looplab/eventlog/mongoutils"
)

// Default collection names.
const (
	DefaultEventsCollection    = "customer_events"
	DefaultStreamsCollection   = "customer_streams"
	DefaultSnapshotsCollection = "customer_snapshots"
)

// allStreamID is the ID of the stream document holding the global position.
const allStreamID = "$all"

// EventStore is an eventlog.EventStore for MongoDB, using one collection for
// all events and another to keep track of the version of every customer. It
// also keeps track of the global position of events, used as event ID in the
// collection.
type EventStore struct {
	client          *mongo.Client
	clientOwnership clientOwnership
	events          *mongo.Collection
	streams         *mongo.Collection
	snapshots       *mongo.Collection
}

type clientOwnership int

const (
	internalClient clientOwnership = iota
	externalClient
)

// NewEventStore creates a new EventStore with a MongoDB URI: `mongodb://hostname`.
func NewEventStore(uri, dbName string, opts ...Option) (*EventStore, error) {
	client, err := Connect(uri)
	if err != nil {
		return nil, err
	}

	return newEventStoreWithClient(client, internalClient, dbName, opts...)
}

// NewEventStoreWithClient creates a new EventStore with a client.
func NewEventStoreWithClient(client *mongo.Client, dbName string, opts ...Option) (*EventStore, error) {
	return newEventStoreWithClient(client, externalClient, dbName, opts...)
}

// Connect connects to MongoDB with majority read and write concerns, as used
// by all stores of the module.
func Connect(uri string) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	opts.SetWriteConcern(writeconcern.Majority())
	opts.SetReadConcern(readconcern.Majority())
	opts.SetReadPreference(readpref.Primary())

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	return client, nil
}

func newEventStoreWithClient(client *mongo.Client, clientOwnership clientOwnership, dbName string, opts ...Option) (*EventStore, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	db := client.Database(dbName)
	s := &EventStore{
		client:          client,
		clientOwnership: clientOwnership,
		events:          db.Collection(DefaultEventsCollection),
		streams:         db.Collection(DefaultStreamsCollection),
		snapshots:       db.Collection(DefaultSnapshotsCollection),
	}

	for _, option := range opts {
		if err := option(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	ctx := context.Background()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	if _, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "version", Value: 1}},
		},
	}); err != nil {
		return nil, fmt.Errorf("could not ensure events indexes: %w", err)
	}

	if _, err := s.snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "customer_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("could not ensure snapshot index: %w", err)
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*EventStore) error

// WithCollectionNames uses different collections from the default events and
// streams collections. Will return an error if provided parameters are equal.
func WithCollectionNames(eventsColl, streamsColl string) Option {
	return func(s *EventStore) error {
		if err := mongoutils.CheckCollectionNames(eventsColl, streamsColl, s.snapshots.Name()); err != nil {
			return err
		}

		db := s.events.Database()
		s.events = db.Collection(eventsColl)
		s.streams = db.Collection(streamsColl)

		return nil
	}
}

// WithSnapshotCollectionName uses a different collection from the default
// snapshots collection.
func WithSnapshotCollectionName(snapshotColl string) Option {
	return func(s *EventStore) error {
		if err := mongoutils.CheckCollectionNames(s.events.Name(), s.streams.Name(), snapshotColl); err != nil {
			return err
		}

		s.snapshots = s.events.Database().Collection(snapshotColl)

		return nil
	}
}

// Save implements the Save method of the eventlog.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []eventlog.Event, expectedVersion int) error {
	if len(events) == 0 {
		return &eventlog.EventStoreError{
			Err: eventlog.ErrMissingEvents,
			Op:  eventlog.EventStoreOpSave,
		}
	}

	dbEvents := make([]*evt, len(events))
	id := events[0].CustomerID()
	version := expectedVersion

	// Validate incoming events and create all event records.
	for i, event := range events {
		// Only accept events belonging to the same customer.
		if event.CustomerID() != id {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrMismatchedEventCustomerIDs,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
				Events:     events,
			}
		}

		// Versions start after the expected version and only move in steps of
		// one, events of the same operation share the version.
		if (i == 0 && event.Version() != expectedVersion+1) ||
			(event.Version() != version && event.Version() != version+1) {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrIncorrectEventVersion,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
				Version:    event.Version(),
				Events:     events,
			}
		}

		version = event.Version()

		e, err := newEvt(event)
		if err != nil {
			return &eventlog.EventStoreError{
				Err:        eventlog.ErrCouldNotSaveEvents,
				BaseErr:    err,
				Op:         eventlog.EventStoreOpSave,
				CustomerID: id,
			}
		}

		dbEvents[i] = e
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotSaveEvents,
			BaseErr:    fmt.Errorf("could not start transaction: %w", err),
			Op:         eventlog.EventStoreOpSave,
			CustomerID: id,
		}
	}

	defer sess.EndSession(ctx)

	if _, err := sess.WithTransaction(ctx, func(txCtx context.Context) (interface{}, error) {
		// Check the version and sequence of the customer.
		var current stream
		if err := s.streams.FindOne(txCtx, bson.M{"_id": id}).Decode(&current); err != nil &&
			!errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("could not find stream: %w", err)
		}

		if current.Version != expectedVersion {
			return nil, eventlog.ErrEventConflictFromOtherSave
		}

		for i, e := range dbEvents {
			if e.Sequence != current.Sequence+i+1 {
				return nil, eventlog.ErrIncorrectEventSequence
			}
		}

		// Fetch and increment global position in the all-stream.
		var allStream struct {
			Position int `bson:"position"`
		}

		if err := s.streams.FindOneAndUpdate(txCtx,
			bson.M{"_id": allStreamID},
			bson.M{"$inc": bson.M{"position": len(dbEvents)}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&allStream); err != nil {
			return nil, fmt.Errorf("could not increment global position: %w", err)
		}

		// Use the global position as ID for the stored events.
		// This natively prevents duplicate events to be written.
		docs := make([]interface{}, len(dbEvents))
		storedAt := time.Now().UTC()

		for i, e := range dbEvents {
			e.Position = allStream.Position - len(dbEvents) + i + 1
			e.StoredAt = storedAt
			docs[i] = e
		}

		if _, err := s.events.InsertMany(txCtx, docs); err != nil {
			return nil, fmt.Errorf("could not insert events: %w", err)
		}

		last := dbEvents[len(dbEvents)-1]
		strm := stream{
			ID:        id,
			Version:   last.Version,
			Sequence:  last.Sequence,
			Position:  last.Position,
			UpdatedAt: storedAt,
		}

		// Update the stream.
		if expectedVersion == 0 {
			if _, err := s.streams.InsertOne(txCtx, strm); err != nil {
				return nil, fmt.Errorf("could not insert stream: %w", err)
			}
		} else {
			if r, err := s.streams.UpdateOne(txCtx,
				bson.M{
					"_id":     id,
					"version": expectedVersion,
				},
				bson.M{
					"$set": bson.M{
						"version":    strm.Version,
						"sequence":   strm.Sequence,
						"position":   strm.Position,
						"updated_at": strm.UpdatedAt,
					},
				},
			); err != nil {
				return nil, fmt.Errorf("could not update stream: %w", err)
			} else if r.MatchedCount == 0 {
				return nil, eventlog.ErrEventConflictFromOtherSave
			}
		}

		return nil, nil
	}); err != nil {
		storeErr := &eventlog.EventStoreError{
			Op:         eventlog.EventStoreOpSave,
			CustomerID: id,
			Version:    expectedVersion,
		}

		switch {
		case errors.Is(err, eventlog.ErrEventConflictFromOtherSave),
			errors.Is(err, eventlog.ErrIncorrectEventSequence):
			storeErr.Err = err
		case mongo.IsDuplicateKeyError(err):
			// Another save stored the same sequence or event ID first.
			storeErr.Err = eventlog.ErrEventConflictFromOtherSave
			storeErr.BaseErr = err
		default:
			storeErr.Err = eventlog.ErrCouldNotSaveEvents
			storeErr.BaseErr = err
		}

		return storeErr
	}

	return nil
}

// Load implements the Load method of the eventlog.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id int) ([]eventlog.Event, error) {
	return s.LoadFrom(ctx, id, 0)
}

// LoadFrom implements the LoadFrom method of the eventlog.EventStore interface.
func (s *EventStore) LoadFrom(ctx context.Context, id int, version int) ([]eventlog.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}, {Key: "sequence", Value: 1}})

	cursor, err := s.events.Find(ctx, bson.M{
		"customer_id": id,
		"version":     bson.M{"$gt": version},
	}, opts)
	if err != nil {
		return nil, &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotLoadEvents,
			BaseErr:    fmt.Errorf("could not find events: %w", err),
			Op:         eventlog.EventStoreOpLoad,
			CustomerID: id,
		}
	}

	events, err := s.loadFromCursor(ctx, id, cursor)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		v, err := s.CurrentVersion(ctx, id)
		if err != nil {
			return nil, err
		}

		if v == 0 {
			return nil, &eventlog.EventStoreError{
				Err:        eventlog.ErrCustomerNotFound,
				Op:         eventlog.EventStoreOpLoad,
				CustomerID: id,
			}
		}
	}

	return events, nil
}

func (s *EventStore) loadFromCursor(ctx context.Context, id int, cursor *mongo.Cursor) ([]eventlog.Event, error) {
	defer cursor.Close(ctx)

	events := []eventlog.Event{}

	for cursor.Next(ctx) {
		var e evt
		if err := cursor.Decode(&e); err != nil {
			return nil, &eventlog.EventStoreError{
				Err:        eventlog.ErrCouldNotLoadEvents,
				BaseErr:    fmt.Errorf("could not decode event: %w", err),
				Op:         eventlog.EventStoreOpLoad,
				CustomerID: id,
				Events:     events,
			}
		}

		event, err := e.event()
		if err != nil {
			return nil, &eventlog.EventStoreError{
				Err:        eventlog.ErrCouldNotUnmarshalEvent,
				BaseErr:    err,
				Op:         eventlog.EventStoreOpLoad,
				CustomerID: id,
				Version:    e.Version,
				Events:     events,
			}
		}

		events = append(events, event)
	}

	if err := cursor.Err(); err != nil {
		return nil, &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotLoadEvents,
			BaseErr:    err,
			Op:         eventlog.EventStoreOpLoad,
			CustomerID: id,
		}
	}

	return events, nil
}

// CurrentVersion implements the CurrentVersion method of the eventlog.EventStore interface.
func (s *EventStore) CurrentVersion(ctx context.Context, id int) (int, error) {
	var strm stream
	if err := s.streams.FindOne(ctx, bson.M{"_id": id}).Decode(&strm); errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	} else if err != nil {
		return 0, &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotLoadEvents,
			BaseErr:    fmt.Errorf("could not find stream: %w", err),
			Op:         eventlog.EventStoreOpVersion,
			CustomerID: id,
		}
	}

	return strm.Version, nil
}

// Close implements the Close method of the eventlog.EventStore interface.
func (s *EventStore) Close() error {
	if s.clientOwnership == externalClient {
		// Don't close a client we don't own.
		return nil
	}

	return s.client.Disconnect(context.Background())
}

// stream is the version of one customer, or the global position for the
// $all stream.
type stream struct {
	ID        int       `bson:"_id"`
	Version   int       `bson:"version"`
	Sequence  int       `bson:"sequence"`
	Position  int       `bson:"position"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// evt is the internal event record for the MongoDB event store used
// to save and load events from the DB.
type evt struct {
	Position   int                `bson:"_id"`
	CustomerID int                `bson:"customer_id"`
	EventID    string             `bson:"event_id"`
	EventType  eventlog.EventType `bson:"event_type"`
	RawData    string             `bson:"event_data,omitempty"`
	Version    int                `bson:"version"`
	Sequence   int                `bson:"sequence"`
	OccurredOn time.Time          `bson:"occurred_on"`
	StoredAt   time.Time          `bson:"stored_at"`
}

// newEvt returns a new evt for an event.
func newEvt(event eventlog.Event) (*evt, error) {
	raw, err := jsonCodec.MarshalEventData(event.Data())
	if err != nil {
		return nil, err
	}

	return &evt{
		CustomerID: event.CustomerID(),
		EventID:    event.EventID().String(),
		EventType:  event.EventType(),
		RawData:    string(raw),
		Version:    event.Version(),
		Sequence:   event.Sequence(),
		OccurredOn: event.OccurredOn(),
	}, nil
}

// event creates the event of the record, decoding the data into the
// registered type.
func (e *evt) event() (eventlog.Event, error) {
	data, err := jsonCodec.UnmarshalEventData(e.EventType, []byte(e.RawData))
	if err != nil {
		return nil, err
	}

	eventID, err := uuid.Parse(e.EventID)
	if err != nil {
		return nil, fmt.Errorf("could not parse event ID: %w", err)
	}

	return eventlog.NewEvent(
		e.EventType,
		data,
		e.OccurredOn,
		eventlog.ForCustomer(e.CustomerID, e.Version, e.Sequence),
		eventlog.WithEventID(eventID),
	), nil
}
