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
	"strings"

	"github.com/looplab/eventlog/customer"
)

// CommandType is the type of a command.
type CommandType string

// String returns the string representation of a command type.
func (ct CommandType) String() string {
	return string(ct)
}

// Command types.
const (
	CreateCommand        = CommandType("create")
	UpdateNameCommand    = CommandType("update_name")
	ChangeEmailCommand   = CommandType("change_email")
	ChangePhoneCommand   = CommandType("change_phone")
	RemovePhoneCommand   = CommandType("remove_phone")
	ChangeAddressCommand = CommandType("change_address")
	RemoveAddressCommand = CommandType("remove_address")
	VerifyCommand        = CommandType("verify")
	ChangeStatusCommand  = CommandType("change_status")
	DeleteCommand        = CommandType("delete")
)

// Command is a command that changes one customer.
type Command interface {
	// CommandType returns the type of the command.
	CommandType() CommandType
	// Customer returns the ID of the target customer and the version the
	// caller expects it to have, 0 for any version.
	Customer() (id int, expectedVersion int)
}

// Target is the customer targeted by a command.
type Target struct {
	ID int
	// ExpectedVersion is the version the caller last saw, 0 to skip the check.
	ExpectedVersion int
}

// Customer implements the Customer method of the Command interface.
func (t Target) Customer() (int, int) {
	return t.ID, t.ExpectedVersion
}

// Create creates a new customer, the ID is allocated by the repo.
type Create struct {
	customer.Details
}

func (Create) CommandType() CommandType { return CreateCommand }
func (Create) Customer() (int, int)     { return 0, 0 }

// UpdateName updates the name of a customer.
type UpdateName struct {
	Target
	FirstName string
	LastName  string
}

func (UpdateName) CommandType() CommandType { return UpdateNameCommand }

// ChangeEmail changes the email of a customer.
type ChangeEmail struct {
	Target
	Email string
}

func (ChangeEmail) CommandType() CommandType { return ChangeEmailCommand }

// ChangePhone sets the phone number of a customer.
type ChangePhone struct {
	Target
	CountryCode string
	Number      string
}

func (ChangePhone) CommandType() CommandType { return ChangePhoneCommand }

// RemovePhone removes the phone number of a customer.
type RemovePhone struct {
	Target
}

func (RemovePhone) CommandType() CommandType { return RemovePhoneCommand }

// ChangeAddress sets the address of a customer.
type ChangeAddress struct {
	Target
	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

func (ChangeAddress) CommandType() CommandType { return ChangeAddressCommand }

// RemoveAddress removes the address of a customer.
type RemoveAddress struct {
	Target
}

func (RemoveAddress) CommandType() CommandType { return RemoveAddressCommand }

// Verify marks the email of a customer as verified.
type Verify struct {
	Target
}

func (Verify) CommandType() CommandType { return VerifyCommand }

// StatusAction is a status change requested by ChangeStatus.
type StatusAction string

// Status actions.
const (
	Activate   = StatusAction("activate")
	Deactivate = StatusAction("deactivate")
	Suspend    = StatusAction("suspend")
)

// StatusActionFromName returns the action with the name, ignoring case.
func StatusActionFromName(name string) (StatusAction, bool) {
	a := StatusAction(strings.ToLower(strings.TrimSpace(name)))
	switch a {
	case Activate, Deactivate, Suspend:
		return a, true
	}

	return "", false
}

// ChangeStatus activates, deactivates or suspends a customer.
type ChangeStatus struct {
	Target
	Action StatusAction
	Reason string
}

func (ChangeStatus) CommandType() CommandType { return ChangeStatusCommand }

// Delete deletes a customer.
type Delete struct {
	Target
	Reason string
}

func (Delete) CommandType() CommandType { return DeleteCommand }
