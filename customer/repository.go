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
	"context"
)

// Repository is the current-state projection of customers. Changes are staged
// with Add and Update and written as a unit by Save.
type Repository interface {
	// NextID allocates a new customer ID.
	NextID(ctx context.Context) (int, error)

	// Find returns the stored customer, or ErrNotFound.
	Find(ctx context.Context, id int) (*Customer, error)

	// Add stages a new customer.
	Add(c *Customer)

	// Update stages a changed customer.
	Update(c *Customer)

	// Save writes all staged changes. A changed customer is only written if
	// the stored version still equals its persisted version, otherwise
	// ErrConcurrencyConflict is returned and nothing is written.
	Save(ctx context.Context) error
}
