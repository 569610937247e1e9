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

package json

import (
	"errors"
	"testing"
	"time"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

func TestEventCodec(t *testing.T) {
	c := &EventCodec{}
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	events := []eventlog.Event{
		eventlog.NewEventForCustomer(customer.Verified, &customer.VerifiedData{
			VerifiedAt: timestamp,
		}, timestamp, 3, 2, 4),
		eventlog.NewEventForCustomer(customer.PhoneRemoved, nil, timestamp, 3, 3, 5),
	}

	for _, event := range events {
		t.Run(event.EventType().String(), func(t *testing.T) {
			b, err := c.MarshalEvent(event)
			if err != nil {
				t.Fatal("there should be no error:", err)
			}

			decoded, err := c.UnmarshalEvent(b)
			if err != nil {
				t.Fatal("there should be no error:", err)
			}

			if err := eventlog.CompareEvents(decoded, event); err != nil {
				t.Error("the decoded event was incorrect:", err)
			}
		})
	}
}

func TestUnmarshalEventDataErrors(t *testing.T) {
	if _, err := UnmarshalEventData("customer:not_registered", []byte("{}")); !errors.Is(err, eventlog.ErrEventDataNotRegistered) {
		t.Error("there should be a not registered error:", err)
	}

	if _, err := UnmarshalEventData(customer.Created, []byte("{")); err == nil {
		t.Error("there should be an unmarshal error")
	}

	data, err := UnmarshalEventData(customer.Created, []byte("null"))
	if err != nil || data != nil {
		t.Error("null data should decode to nil:", data, err)
	}

	if _, err := new(EventCodec).UnmarshalEvent([]byte("not json")); err == nil {
		t.Error("there should be an unmarshal error")
	}
}
