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

// Package json encodes events and event data as JSON, tagged with the event
// type so that the data can be decoded into the registered type again.
package json

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/looplab/eventlog"
)

// EventCodec is a codec for marshaling and unmarshaling events
// to and from bytes in JSON format.
type EventCodec struct{}

// MarshalEvent marshals an event into bytes in JSON format.
func (c *EventCodec) MarshalEvent(event eventlog.Event) ([]byte, error) {
	e := evt{
		EventID:    event.EventID(),
		EventType:  event.EventType(),
		OccurredOn: event.OccurredOn(),
		CustomerID: event.CustomerID(),
		Version:    event.Version(),
		Sequence:   event.Sequence(),
	}

	// Marshal event data if there is any.
	var err error
	if e.RawData, err = MarshalEventData(event.Data()); err != nil {
		return nil, err
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("could not marshal event: %w", err)
	}

	return b, nil
}

// UnmarshalEvent unmarshals an event from bytes in JSON format.
func (c *EventCodec) UnmarshalEvent(b []byte) (eventlog.Event, error) {
	// Decode the raw JSON event data.
	var e evt
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("could not unmarshal event: %w", err)
	}

	data, err := UnmarshalEventData(e.EventType, e.RawData)
	if err != nil {
		return nil, err
	}

	return eventlog.NewEvent(
		e.EventType,
		data,
		e.OccurredOn,
		eventlog.ForCustomer(e.CustomerID, e.Version, e.Sequence),
		eventlog.WithEventID(e.EventID),
	), nil
}

// MarshalEventData marshals event data, nil data is marshaled to nil.
func MarshalEventData(data eventlog.EventData) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("could not marshal event data: %w", err)
	}

	return b, nil
}

// UnmarshalEventData creates event data of the registered type for the event
// type and decodes it from raw JSON. Empty input gives nil data.
func UnmarshalEventData(eventType eventlog.EventType, raw []byte) (eventlog.EventData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	data, err := eventlog.CreateEventData(eventType)
	if err != nil {
		return nil, fmt.Errorf("could not create event data: %w", err)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("could not unmarshal event data: %w", err)
	}

	return data, nil
}

// evt is the internal event used on the wire only.
type evt struct {
	EventID    uuid.UUID          `json:"event_id"`
	EventType  eventlog.EventType `json:"event_type"`
	RawData    json.RawMessage    `json:"data,omitempty"`
	OccurredOn time.Time          `json:"occurred_on"`
	CustomerID int                `json:"customer_id"`
	Version    int                `json:"version"`
	Sequence   int                `json:"sequence"`
}
