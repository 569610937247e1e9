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
	"encoding/json"
	"fmt"
	"time"

	"github.com/looplab/eventlog"
)

// State is the full state of a customer, used for snapshots and as the
// document of the current-state projection.
type State struct {
	ID        int    `json:"id"         bson:"_id"`
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name"  bson:"last_name"`
	Email     string `json:"email"      bson:"email"`

	PhoneCountryCode string `json:"phone_country_code,omitempty" bson:"phone_country_code,omitempty"`
	PhoneNumber      string `json:"phone_number,omitempty"       bson:"phone_number,omitempty"`

	Street       string `json:"street,omitempty"   bson:"street,omitempty"`
	City         string `json:"city,omitempty"     bson:"city,omitempty"`
	AddressState string `json:"state,omitempty"    bson:"state,omitempty"`
	Country      string `json:"country,omitempty"  bson:"country,omitempty"`
	ZipCode      string `json:"zip_code,omitempty" bson:"zip_code,omitempty"`

	StatusID   int    `json:"status_id"   bson:"status_id"`
	StatusName string `json:"status_name" bson:"status_name"`

	CreatedAt  time.Time `json:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  bson:"updated_at"`
	VerifiedAt time.Time `json:"verified_at" bson:"verified_at"`
	DeletedAt  time.Time `json:"deleted_at"  bson:"deleted_at"`

	Version  int `json:"version"  bson:"version"`
	Sequence int `json:"sequence" bson:"sequence"`
}

// State returns the current state of the customer.
func (c *Customer) State() State {
	s := State{
		ID:         c.id,
		FirstName:  c.name.First(),
		LastName:   c.name.Last(),
		Email:      c.email.String(),
		StatusID:   c.status.ID(),
		StatusName: c.status.String(),
		CreatedAt:  c.createdAt,
		UpdatedAt:  c.updatedAt,
		VerifiedAt: c.verifiedAt,
		DeletedAt:  c.deletedAt,
		Version:    c.version,
		Sequence:   c.sequence,
	}

	if c.phone != nil {
		s.PhoneCountryCode = c.phone.countryCode
		s.PhoneNumber = c.phone.number
	}

	if c.address != nil {
		s.Street = c.address.street
		s.City = c.address.city
		s.AddressState = c.address.state
		s.Country = c.address.country
		s.ZipCode = c.address.zipCode
	}

	return s
}

// FromState restores a customer from a stored state. The state is trusted
// and not validated, the version counts as persisted.
func FromState(s State) (*Customer, error) {
	status, err := StatusFromID(s.StatusID)
	if err != nil {
		return nil, err
	}

	c := &Customer{
		id:               s.ID,
		version:          s.Version,
		sequence:         s.Sequence,
		persistedVersion: s.Version,
		name:             Name{first: s.FirstName, last: s.LastName},
		email:            Email{value: s.Email},
		status:           status,
		createdAt:        s.CreatedAt.UTC(),
		updatedAt:        utcOrZero(s.UpdatedAt),
		verifiedAt:       utcOrZero(s.VerifiedAt),
		deletedAt:        utcOrZero(s.DeletedAt),
	}

	if s.PhoneCountryCode != "" || s.PhoneNumber != "" {
		c.phone = &Phone{countryCode: s.PhoneCountryCode, number: s.PhoneNumber}
	}

	if s.Street != "" {
		c.address = &Address{
			street:  s.Street,
			city:    s.City,
			state:   s.AddressState,
			country: s.Country,
			zipCode: s.ZipCode,
		}
	}

	return c, nil
}

// Snapshot serializes the current state as a snapshot at the current version.
func (c *Customer) Snapshot() (eventlog.Snapshot, error) {
	b, err := json.Marshal(c.State())
	if err != nil {
		return eventlog.Snapshot{}, fmt.Errorf("could not marshal customer state: %w", err)
	}

	return eventlog.Snapshot{
		CustomerID: c.id,
		Version:    c.version,
		Sequence:   c.sequence,
		State:      b,
		CreatedAt:  now(),
	}, nil
}

// FromSnapshot restores a customer from a snapshot.
func FromSnapshot(s eventlog.Snapshot) (*Customer, error) {
	var state State
	if err := json.Unmarshal(s.State, &state); err != nil {
		return nil, fmt.Errorf("could not unmarshal customer state: %w", err)
	}

	if state.ID != s.CustomerID || state.Version != s.Version {
		return nil, fmt.Errorf("snapshot of customer %d v%d contains state of customer %d v%d",
			s.CustomerID, s.Version, state.ID, state.Version)
	}

	return FromState(state)
}

// A zero time read back from storage may carry a location, keep it zero.
func utcOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}

	return t.UTC()
}
