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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event describing a change that has happened to a customer.
//
// An event type name should:
//   1) Be in past tense (EmailChanged)
//   2) Contain the intent (EmailChanged vs EmailCorrected).
//
// The event should contain all the data needed when applying/handling it.
type Event interface {
	// EventID is the globally unique ID of the event.
	EventID() uuid.UUID
	// EventType returns the type of the event, used as discriminator for Data.
	EventType() EventType
	// Data is the variant specific payload of the event, may be nil.
	Data() EventData
	// OccurredOn is the UTC time when the event happened.
	OccurredOn() time.Time

	// CustomerID is the ID of the customer that the event belongs to.
	CustomerID() int
	// Version is the customer version after the operation that raised the
	// event. Several events raised by one operation share the same version.
	Version() int
	// Sequence is unique and strictly increasing per customer, one step for
	// every event.
	Sequence() int

	// A string representation of the event.
	String() string
}

// EventType is the type of an event, used as its unique identifier.
type EventType string

// String returns the string representation of an event type.
func (et EventType) String() string {
	return string(et)
}

// EventData is any additional data for an event.
type EventData interface{}

// EventOption is an option to use when creating events.
type EventOption func(Event)

// ForCustomer adds customer data when creating an event.
func ForCustomer(id, version, sequence int) EventOption {
	return func(e Event) {
		if evt, ok := e.(*event); ok {
			evt.customerID = id
			evt.version = version
			evt.sequence = sequence
		}
	}
}

// WithEventID uses a known event ID, for example when loading stored events.
func WithEventID(id uuid.UUID) EventOption {
	return func(e Event) {
		if evt, ok := e.(*event); ok {
			evt.id = id
		}
	}
}

// NewEvent creates a new event with a type and data, setting its timestamp.
// A new event ID is generated unless WithEventID is used.
func NewEvent(eventType EventType, data EventData, occurredOn time.Time, options ...EventOption) Event {
	e := &event{
		id:         uuid.New(),
		eventType:  eventType,
		data:       data,
		occurredOn: occurredOn.UTC(),
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		option(e)
	}

	return e
}

// NewEventForCustomer creates a new event with a type and data, setting its
// timestamp. It also sets the customer data on it.
func NewEventForCustomer(eventType EventType, data EventData, occurredOn time.Time,
	customerID, version, sequence int) Event {
	return NewEvent(eventType, data, occurredOn, ForCustomer(customerID, version, sequence))
}

// event is an internal representation of an event, returned when the customer
// uses NewEvent to create a new event. The events loaded from the db is
// represented by each DBs internal event type, implementing Event.
type event struct {
	id         uuid.UUID
	eventType  EventType
	data       EventData
	occurredOn time.Time
	customerID int
	version    int
	sequence   int
}

// EventID implements the EventID method of the Event interface.
func (e event) EventID() uuid.UUID {
	return e.id
}

// EventType implements the EventType method of the Event interface.
func (e event) EventType() EventType {
	return e.eventType
}

// Data implements the Data method of the Event interface.
func (e event) Data() EventData {
	return e.data
}

// OccurredOn implements the OccurredOn method of the Event interface.
func (e event) OccurredOn() time.Time {
	return e.occurredOn
}

// CustomerID implements the CustomerID method of the Event interface.
func (e event) CustomerID() int {
	return e.customerID
}

// Version implements the Version method of the Event interface.
func (e event) Version() int {
	return e.version
}

// Sequence implements the Sequence method of the Event interface.
func (e event) Sequence() int {
	return e.sequence
}

// String implements the String method of the Event interface.
func (e event) String() string {
	return fmt.Sprintf("%s(customer %d, v%d, #%d)", e.eventType, e.customerID, e.version, e.sequence)
}

// ErrEventDataNotRegistered is when no event data factory was registered.
var ErrEventDataNotRegistered = errors.New("event data not registered")

// RegisterEventData registers an event data factory for a type. The factory is
// used to create concrete event data structs when loading from the database.
//
// An example would be:
//     RegisterEventData(MyEventType, func() EventData { return &MyEventData{} })
func RegisterEventData(eventType EventType, factory func() EventData) {
	if eventType == EventType("") {
		panic("eventlog: attempt to register empty event type")
	}

	eventDataFactoriesMu.Lock()
	defer eventDataFactoriesMu.Unlock()

	if _, ok := eventDataFactories[eventType]; ok {
		panic(fmt.Sprintf("eventlog: registering duplicate types for %q", eventType))
	}

	eventDataFactories[eventType] = factory
}

// UnregisterEventData removes the registration of the event data factory for
// a type. This is mainly useful in maintenance situations where the event data
// needs to be switched in a migrations.
func UnregisterEventData(eventType EventType) {
	if eventType == EventType("") {
		panic("eventlog: attempt to unregister empty event type")
	}

	eventDataFactoriesMu.Lock()
	defer eventDataFactoriesMu.Unlock()

	if _, ok := eventDataFactories[eventType]; !ok {
		panic(fmt.Sprintf("eventlog: unregister of non-registered type %q", eventType))
	}

	delete(eventDataFactories, eventType)
}

// CreateEventData creates an event data of a type using the factory
// registered with RegisterEventData.
func CreateEventData(eventType EventType) (EventData, error) {
	eventDataFactoriesMu.RLock()
	defer eventDataFactoriesMu.RUnlock()

	if factory, ok := eventDataFactories[eventType]; ok {
		return factory(), nil
	}

	return nil, ErrEventDataNotRegistered
}

var eventDataFactories = make(map[EventType]func() EventData)
var eventDataFactoriesMu sync.RWMutex
