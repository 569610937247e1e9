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

package commandhandler

import (
	"context"
	"fmt"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/customer"
)

// History is the event history of a customer.
type History struct {
	CustomerID     int
	CurrentVersion int
	Events         []eventlog.Event
}

// History returns the event history of a customer, or customer.ErrNotFound if
// it has no events.
func (h *Handler) History(ctx context.Context, id int) (*History, error) {
	events, err := h.store.Events(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no history for customer %d", customer.ErrNotFound, id)
	}

	return &History{
		CustomerID:     id,
		CurrentVersion: events[len(events)-1].Version(),
		Events:         events,
	}, nil
}

// Get returns the customer, from the projection or the event log depending on
// how the handler loads customers.
func (h *Handler) Get(ctx context.Context, id int) (*customer.Customer, error) {
	return h.load(ctx, h.newRepo(), id)
}
