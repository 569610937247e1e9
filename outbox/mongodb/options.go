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

	"github.com/looplab/eventlog/mongoutils"
	"github.com/looplab/eventlog/outbox"
)

// Option is an option setter used to configure creation.
type Option func(*Outbox) error

// WithCollectionName uses a different collection from the default "outbox" collection.
func WithCollectionName(outboxColl string) Option {
	return func(o *Outbox) error {
		if err := mongoutils.CheckCollectionName(outboxColl); err != nil {
			return fmt.Errorf("outbox collection: %w", err)
		}

		o.outbox = o.outbox.Database().Collection(outboxColl)

		return nil
	}
}

// WithRelayOptions configures the relay of the outbox.
func WithRelayOptions(options ...outbox.Option) Option {
	return func(o *Outbox) error {
		o.relayOptions = append(o.relayOptions, options...)

		return nil
	}
}
