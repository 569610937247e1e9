// Copyright (c) 2021 - The Event Horizon authors.
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

package eventlog

import (
	"context"
	"encoding/json"
	"time"
)

// Snapshot is the full serialized state of a customer at a version.
type Snapshot struct {
	CustomerID int             `json:"customer_id" bson:"customer_id"`
	Version    int             `json:"version" bson:"version"`
	Sequence   int             `json:"sequence" bson:"sequence"`
	State      json.RawMessage `json:"state" bson:"-"`
	CreatedAt  time.Time       `json:"created_at" bson:"created_at"`
}

// SnapshotStore stores the latest snapshot of every customer.
type SnapshotStore interface {
	// LoadSnapshot returns the latest snapshot of the customer, or nil and no
	// error if there is none.
	LoadSnapshot(ctx context.Context, customerID int) (*Snapshot, error)

	// SaveSnapshot replaces the stored snapshot of the customer. A snapshot
	// with a lower version than the stored one is ignored.
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}
