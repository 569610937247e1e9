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

// Package redis is a snapshot store for Redis, keeping the latest snapshot of
// every customer under its own key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/looplab/eventlog"
)

// DefaultPrefix is the default prefix of the snapshot keys.
const DefaultPrefix = "customer_snapshot"

// saveScript stores the snapshot unless a newer one is already stored.
var saveScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local stored = cjson.decode(current)
	if tonumber(stored["version"]) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

// SnapshotStore is an eventlog.SnapshotStore for Redis.
type SnapshotStore struct {
	client     *redis.Client
	clientOpts *redis.Options
	prefix     string
}

// NewSnapshotStore creates a SnapshotStore, with optional settings.
func NewSnapshotStore(addr string, options ...Option) (*SnapshotStore, error) {
	s := &SnapshotStore{
		prefix: DefaultPrefix,
	}

	// Apply configuration options.
	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	// Default client options.
	if s.clientOpts == nil {
		s.clientOpts = &redis.Options{
			Addr: addr,
		}
	}

	// Create client and check connection.
	s.client = redis.NewClient(s.clientOpts)
	if res, err := s.client.Ping(context.Background()).Result(); err != nil || res != "PONG" {
		return nil, fmt.Errorf("could not check Redis server: %w", err)
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*SnapshotStore) error

// WithPrefix uses a different prefix for the snapshot keys.
func WithPrefix(prefix string) Option {
	return func(s *SnapshotStore) error {
		if prefix == "" {
			return errors.New("missing prefix")
		}

		s.prefix = prefix

		return nil
	}
}

// WithRedisOptions uses the Redis options for the underlying client, instead of the defaults.
func WithRedisOptions(opts *redis.Options) Option {
	return func(s *SnapshotStore) error {
		s.clientOpts = opts

		return nil
	}
}

// LoadSnapshot implements the LoadSnapshot method of the eventlog.SnapshotStore interface.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, id int) (*eventlog.Snapshot, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotLoadEvents,
			BaseErr:    fmt.Errorf("could not get snapshot: %w", err),
			Op:         eventlog.EventStoreOpLoadSnapshot,
			CustomerID: id,
		}
	}

	snapshot := &eventlog.Snapshot{}
	if err := json.Unmarshal(b, snapshot); err != nil {
		return nil, &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotUnmarshalEvent,
			BaseErr:    fmt.Errorf("could not decode snapshot: %w", err),
			Op:         eventlog.EventStoreOpLoadSnapshot,
			CustomerID: id,
		}
	}

	return snapshot, nil
}

// SaveSnapshot implements the SaveSnapshot method of the eventlog.SnapshotStore interface.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snapshot eventlog.Snapshot) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotSaveEvents,
			BaseErr:    fmt.Errorf("could not encode snapshot: %w", err),
			Op:         eventlog.EventStoreOpSaveSnapshot,
			CustomerID: snapshot.CustomerID,
			Version:    snapshot.Version,
		}
	}

	if err := saveScript.Run(ctx, s.client,
		[]string{s.key(snapshot.CustomerID)},
		b, snapshot.Version,
	).Err(); err != nil {
		return &eventlog.EventStoreError{
			Err:        eventlog.ErrCouldNotSaveEvents,
			BaseErr:    fmt.Errorf("could not store snapshot: %w", err),
			Op:         eventlog.EventStoreOpSaveSnapshot,
			CustomerID: snapshot.CustomerID,
			Version:    snapshot.Version,
		}
	}

	return nil
}

// Close closes the Redis client.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}

func (s *SnapshotStore) key(id int) string {
	return s.prefix + ":" + strconv.Itoa(id)
}
