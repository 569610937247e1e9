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
	"reflect"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	timestamp := mockTime(t)

	c, err := CreateWithDetails(7, Details{
		FirstName:        "John",
		LastName:         "Doe",
		Email:            "john@example.com",
		PhoneCountryCode: "46",
		PhoneNumber:      "0701234567",
		Street:           "Street",
		City:             "City",
		State:            "State",
		Country:          "US",
		ZipCode:          "123",
	})
	require.NoError(t, err)
	require.NoError(t, c.Verify())

	s, err := c.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, 7, s.CustomerID)
	assert.Equal(t, 4, s.Version)
	assert.Equal(t, 5, s.Sequence)
	assert.True(t, s.CreatedAt.Equal(timestamp))

	restored, err := FromSnapshot(s)
	require.NoError(t, err)

	if !reflect.DeepEqual(restored.State(), c.State()) {
		t.Error("the restored state should be equal:")
		t.Log(pretty.Diff(restored.State(), c.State()))
	}

	assert.Equal(t, 4, restored.PersistedVersion())
	assert.Empty(t, restored.UncommittedEvents())
	assert.Equal(t, "0701234567", restored.Phone().Number())
	assert.Equal(t, "State", restored.Address().State())
	assert.True(t, restored.IsActive())

	// Operations continue from the restored version and sequence.
	require.NoError(t, restored.Suspend("fraud"))
	events := restored.UncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0].Version())
	assert.Equal(t, 6, events[0].Sequence())
}

func TestFromSnapshotMismatch(t *testing.T) {
	mockTime(t)

	c, err := Create(1, "John", "Doe", "john@example.com")
	require.NoError(t, err)

	s, err := c.Snapshot()
	require.NoError(t, err)

	s.Version = 2
	if _, err := FromSnapshot(s); err == nil {
		t.Error("there should be an error for a mismatched snapshot")
	}

	s.State = json.RawMessage("{")
	if _, err := FromSnapshot(s); err == nil {
		t.Error("there should be an error for invalid state")
	}
}

func TestFromStateUnknownStatus(t *testing.T) {
	if _, err := FromState(State{ID: 1, StatusID: 42}); err == nil {
		t.Error("there should be an error for an unknown status")
	}
}
