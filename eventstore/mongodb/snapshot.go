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

package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/looplab/eventlog"
)

// snapshotRecord is the stored snapshot, with the state compressed.
type snapshotRecord struct {
	CustomerID int       `bson:"customer_id"`
	Version    int       `bson:"version"`
	Sequence   int       `bson:"sequence"`
	Data       []byte    `bson:"data"`
	CreatedAt  time.Time `bson:"created_at"`
}

// LoadSnapshot implements the LoadSnapshot method of the eventlog.SnapshotStore interface.
func (s *EventStore) LoadSnapshot(ctx context.Context, id int) (*eventlog.Snapshot, error) {
	var record snapshotRecord
	if err := s.snapshots.FindOne(ctx, bson.M{"customer_id": id}).Decode(&record); errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotLoadEvents,
			BaseErr:    fmt.Errorf("could not find snapshot: %w", err),
			Op:         eventlog.EventStoreOpLoadSnapshot,
			CustomerID: id,
		}
	}

	state, err := decompress(record.Data)
	if err != nil {
		return nil, &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotUnmarshalEvent,
			BaseErr:    fmt.Errorf("could not decompress snapshot: %w", err),
			Op:         eventlog.EventStoreOpLoadSnapshot,
			CustomerID: id,
			Version:    record.Version,
		}
	}

	return &eventlog.Snapshot{
		CustomerID: record.CustomerID,
		Version:    record.Version,
		Sequence:   record.Sequence,
		State:      state,
		CreatedAt:  record.CreatedAt,
	}, nil
}

// SaveSnapshot implements the SaveSnapshot method of the eventlog.SnapshotStore interface.
func (s *EventStore) SaveSnapshot(ctx context.Context, snapshot eventlog.Snapshot) error {
	data, err := compress(snapshot.State)
	if err != nil {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotSaveEvents,
			BaseErr:    fmt.Errorf("could not compress snapshot: %w", err),
			Op:         eventlog.EventStoreOpSaveSnapshot,
			CustomerID: snapshot.CustomerID,
			Version:    snapshot.Version,
		}
	}

	createdAt := snapshot.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	record := snapshotRecord{
		CustomerID: snapshot.CustomerID,
		Version:    snapshot.Version,
		Sequence:   snapshot.Sequence,
		Data:       data,
		CreatedAt:  createdAt.UTC(),
	}

	// Only replace an older snapshot. When a newer one is stored the filter
	// does not match and the upsert hits the unique customer index.
	if _, err := s.snapshots.ReplaceOne(ctx,
		bson.M{
			"customer_id": snapshot.CustomerID,
			"version":     bson.M{"$lte": snapshot.Version},
		},
		record,
		options.Replace().SetUpsert(true),
	); mongo.IsDuplicateKeyError(err) {
		return nil
	} else if err != nil {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotSaveEvents,
			BaseErr:    fmt.Errorf("could not save snapshot: %w", err),
			Op:         eventlog.EventStoreOpSaveSnapshot,
			CustomerID: snapshot.CustomerID,
			Version:    snapshot.Version,
		}
	}

	return nil
}

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
