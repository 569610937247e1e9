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

package eventlog

import (
	"fmt"
	"reflect"
)

// CompareConfig is a config for the CompareEvents function.
type CompareConfig struct {
	ignoreOccurredOn bool
	ignoreEventID    bool
}

// CompareOption is an option setter used to configure comparing of events.
type CompareOption func(*CompareConfig)

// IgnoreOccurredOn ignores the timestamps of events when comparing.
func IgnoreOccurredOn() CompareOption {
	return func(o *CompareConfig) {
		o.ignoreOccurredOn = true
	}
}

// IgnoreEventID ignores the IDs of events when comparing.
func IgnoreEventID() CompareOption {
	return func(o *CompareConfig) {
		o.ignoreEventID = true
	}
}

// CompareEvents compares two events, with options for ignoring the timestamp
// and the event ID.
func CompareEvents(e1, e2 Event, options ...CompareOption) error {
	var opts CompareConfig
	for _, o := range options {
		if o == nil {
			continue
		}
		o(&opts)
	}

	if e1.EventType() != e2.EventType() {
		return fmt.Errorf("incorrect event type: %s (should be %s)", e1.EventType(), e2.EventType())
	}
	if !reflect.DeepEqual(e1.Data(), e2.Data()) {
		return fmt.Errorf("incorrect event data: %v (should be %v)", e1.Data(), e2.Data())
	}
	if !opts.ignoreOccurredOn {
		if !e1.OccurredOn().Equal(e2.OccurredOn()) {
			return fmt.Errorf("incorrect timestamp: %s (should be %s)", e1.OccurredOn(), e2.OccurredOn())
		}
	}
	if !opts.ignoreEventID {
		if e1.EventID() != e2.EventID() {
			return fmt.Errorf("incorrect event ID: %s (should be %s)", e1.EventID(), e2.EventID())
		}
	}
	if e1.CustomerID() != e2.CustomerID() {
		return fmt.Errorf("incorrect customer ID: %d (should be %d)", e1.CustomerID(), e2.CustomerID())
	}
	if e1.Version() != e2.Version() {
		return fmt.Errorf("incorrect version: %d (should be %d)", e1.Version(), e2.Version())
	}
	if e1.Sequence() != e2.Sequence() {
		return fmt.Errorf("incorrect sequence: %d (should be %d)", e1.Sequence(), e2.Sequence())
	}
	return nil
}

// CompareEventSlices compares two slices of events, using options.
func CompareEventSlices(evts1, evts2 []Event, opts ...CompareOption) bool {
	if len(evts1) != len(evts2) {
		return false
	}
	for i, e1 := range evts1 {
		if err := CompareEvents(e1, evts2[i], opts...); err != nil {
			return false
		}
	}
	return true
}
