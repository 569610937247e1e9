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

package customer

import (
	"time"

	"github.com/looplab/eventlog"
)

const (
	// Created is the event after a customer is created.
	Created = eventlog.EventType("customer:created")
	// NameUpdated is the event after the name of a customer is updated.
	NameUpdated = eventlog.EventType("customer:name_updated")
	// EmailChanged is the event after the email of a customer is changed.
	EmailChanged = eventlog.EventType("customer:email_changed")
	// PhoneChanged is the event after the phone of a customer is changed.
	PhoneChanged = eventlog.EventType("customer:phone_changed")
	// PhoneRemoved is the event after the phone of a customer is removed.
	PhoneRemoved = eventlog.EventType("customer:phone_removed")
	// AddressChanged is the event after the address of a customer is changed.
	AddressChanged = eventlog.EventType("customer:address_changed")
	// AddressRemoved is the event after the address of a customer is removed.
	AddressRemoved = eventlog.EventType("customer:address_removed")
	// StatusChanged is the event after the status of a customer is changed.
	StatusChanged = eventlog.EventType("customer:status_changed")
	// Verified is the event after the email of a customer is verified.
	Verified = eventlog.EventType("customer:verified")
	// CustomerDeleted is the event after a customer is deleted.
	CustomerDeleted = eventlog.EventType("customer:deleted")
)

func init() {
	eventlog.RegisterEventData(Created, func() eventlog.EventData {
		return &CreatedData{}
	})
	eventlog.RegisterEventData(NameUpdated, func() eventlog.EventData {
		return &NameUpdatedData{}
	})
	eventlog.RegisterEventData(EmailChanged, func() eventlog.EventData {
		return &EmailChangedData{}
	})
	eventlog.RegisterEventData(PhoneChanged, func() eventlog.EventData {
		return &PhoneChangedData{}
	})
	eventlog.RegisterEventData(AddressChanged, func() eventlog.EventData {
		return &AddressChangedData{}
	})
	eventlog.RegisterEventData(StatusChanged, func() eventlog.EventData {
		return &StatusChangedData{}
	})
	eventlog.RegisterEventData(Verified, func() eventlog.EventData {
		return &VerifiedData{}
	})
	eventlog.RegisterEventData(CustomerDeleted, func() eventlog.EventData {
		return &DeletedData{}
	})
}

// CreatedData is the event data for the Created event.
type CreatedData struct {
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name"  bson:"last_name"`
	Email     string `json:"email"      bson:"email"`
}

// NameUpdatedData is the event data for the NameUpdated event.
type NameUpdatedData struct {
	OldFirstName string `json:"old_first_name" bson:"old_first_name"`
	OldLastName  string `json:"old_last_name"  bson:"old_last_name"`
	FirstName    string `json:"first_name"     bson:"first_name"`
	LastName     string `json:"last_name"      bson:"last_name"`
}

// EmailChangedData is the event data for the EmailChanged event.
type EmailChangedData struct {
	OldEmail string `json:"old_email" bson:"old_email"`
	Email    string `json:"email"     bson:"email"`
}

// PhoneChangedData is the event data for the PhoneChanged event.
type PhoneChangedData struct {
	CountryCode string `json:"country_code" bson:"country_code"`
	Number      string `json:"number"       bson:"number"`
}

// AddressChangedData is the event data for the AddressChanged event.
type AddressChangedData struct {
	Street  string `json:"street"   bson:"street"`
	City    string `json:"city"     bson:"city"`
	State   string `json:"state"    bson:"state"`
	Country string `json:"country"  bson:"country"`
	ZipCode string `json:"zip_code" bson:"zip_code"`
}

// StatusChangedData is the event data for the StatusChanged event.
type StatusChangedData struct {
	OldStatus string `json:"old_status"       bson:"old_status"`
	Status    string `json:"status"           bson:"status"`
	Reason    string `json:"reason,omitempty" bson:"reason,omitempty"`
}

// VerifiedData is the event data for the Verified event.
type VerifiedData struct {
	VerifiedAt time.Time `json:"verified_at" bson:"verified_at"`
}

// DeletedData is the event data for the CustomerDeleted event.
type DeletedData struct {
	Reason    string    `json:"reason"     bson:"reason"`
	DeletedAt time.Time `json:"deleted_at" bson:"deleted_at"`
}
