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
	"fmt"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/mongoutils"
)

// Option is an option setter used to configure creation.
type Option func(*DB) error

// WithCollectionNames uses different collections from the default customers
// and counters collections.
func WithCollectionNames(customersColl, countersColl string) Option {
	return func(db *DB) error {
		if err := mongoutils.CheckCollectionNames(customersColl, countersColl); err != nil {
			return err
		}

		d := db.customers.Database()
		db.customers = d.Collection(customersColl)
		db.counters = d.Collection(countersColl)

		return nil
	}
}

// WithOutbox stages the events of saved customers in the outbox, in the same
// transaction as the customers. The outbox must use the same client.
func WithOutbox(o eventlog.Outbox) Option {
	return func(db *DB) error {
		if o == nil {
			return fmt.Errorf("nil outbox")
		}

		db.outbox = o

		return nil
	}
}
