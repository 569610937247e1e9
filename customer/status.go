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
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle status of a customer.
type Status int

const (
	// Active customers are verified and can be used.
	Active Status = 1
	// Inactive customers have been deactivated.
	Inactive Status = 2
	// Suspended customers are blocked, always with a reason.
	Suspended Status = 3
	// Deleted customers are soft deleted and can not be changed.
	Deleted Status = 4
	// PendingVerification is the initial status, until the email is verified.
	PendingVerification Status = 5
)

var statusNames = map[Status]string{
	Active:              "Active",
	Inactive:            "Inactive",
	Suspended:           "Suspended",
	Deleted:             "Deleted",
	PendingVerification: "PendingVerification",
}

// ErrUnknownStatus is when a status id or name is not known.
var ErrUnknownStatus = errors.New("unknown status")

// ID returns the stable numeric id of the status.
func (s Status) ID() int {
	return int(s)
}

// String returns the name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid returns true for the known statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]

	return ok
}

// StatusFromID returns the status with the id.
func StatusFromID(id int) (Status, error) {
	if s := Status(id); s.Valid() {
		return s, nil
	}

	return 0, fmt.Errorf("%w: id %d", ErrUnknownStatus, id)
}

// StatusFromName returns the status with the name, compared case insensitive.
func StatusFromName(name string) (Status, error) {
	for s, n := range statusNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return s, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}
