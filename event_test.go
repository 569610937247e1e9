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
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

const (
	testEventType         EventType = "test:event"
	testEventRegisterType EventType = "test:event_register"
)

type testEventData struct {
	Content string
}

type testEventRegisterData struct{}

func TestNewEvent(t *testing.T) {
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)
	event := NewEvent(testEventType, &testEventData{"event1"}, timestamp)

	if event.EventType() != testEventType {
		t.Error("the event type should be correct:", event.EventType())
	}

	if !reflect.DeepEqual(event.Data(), &testEventData{"event1"}) {
		t.Error("the data should be correct:", event.Data())
	}

	if !event.OccurredOn().Equal(timestamp) {
		t.Error("the timestamp should be correct:", event.OccurredOn())
	}

	if event.EventID() == uuid.Nil {
		t.Error("the event ID should be set")
	}

	if event.Version() != 0 || event.Sequence() != 0 || event.CustomerID() != 0 {
		t.Error("the customer data should be zero:", event)
	}

	id := uuid.New()
	event = NewEvent(testEventType, &testEventData{"event1"},
		timestamp.In(time.FixedZone("CET", 3600)),
		ForCustomer(7, 3, 4),
		WithEventID(id),
	)

	if event.EventID() != id {
		t.Error("the event ID should be correct:", event.EventID())
	}

	if event.OccurredOn().Location() != time.UTC {
		t.Error("the timestamp should be in UTC:", event.OccurredOn())
	}

	if event.CustomerID() != 7 {
		t.Error("the customer ID should be correct:", event.CustomerID())
	}

	if event.Version() != 3 {
		t.Error("the version should be correct:", event.Version())
	}

	if event.Sequence() != 4 {
		t.Error("the sequence should be correct:", event.Sequence())
	}

	if event.String() != "test:event(customer 7, v3, #4)" {
		t.Error("the string representation should be correct:", event.String())
	}
}

func TestCreateEventData(t *testing.T) {
	data, err := CreateEventData(testEventRegisterType)
	if !errors.Is(err, ErrEventDataNotRegistered) {
		t.Error("there should be a event not registered error:", err)
	}

	if data != nil {
		t.Error("the data should be nil")
	}

	RegisterEventData(testEventRegisterType, func() EventData {
		return &testEventRegisterData{}
	})

	data, err = CreateEventData(testEventRegisterType)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if _, ok := data.(*testEventRegisterData); !ok {
		t.Errorf("the event type should be correct: %T", data)
	}

	UnregisterEventData(testEventRegisterType)

	if _, err := CreateEventData(testEventRegisterType); !errors.Is(err, ErrEventDataNotRegistered) {
		t.Error("there should be a event not registered error:", err)
	}
}

func TestRegisterEventDataEmptyName(t *testing.T) {
	defer func() {
		if r := recover(); r == nil || r.(string) != "eventlog: attempt to register empty event type" {
			t.Error("there should have been a panic:", r)
		}
	}()
	RegisterEventData("", func() EventData { return &testEventData{} })
}

func TestRegisterEventDataTwice(t *testing.T) {
	defer func() {
		if r := recover(); r == nil || r.(string) != `eventlog: registering duplicate types for "test:event_twice"` {
			t.Error("there should have been a panic:", r)
		}
	}()
	RegisterEventData("test:event_twice", func() EventData { return &testEventData{} })
	RegisterEventData("test:event_twice", func() EventData { return &testEventData{} })
}

func TestUnregisterEventDataNotRegistered(t *testing.T) {
	defer func() {
		if r := recover(); r == nil || r.(string) != `eventlog: unregister of non-registered type "test:event_missing"` {
			t.Error("there should have been a panic:", r)
		}
	}()
	UnregisterEventData("test:event_missing")
}
