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
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameLength  = 100
	maxEmailLength = 256
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// Name is the first and last name of a customer.
type Name struct {
	first string
	last  string
}

// NewName creates a validated name, trimming both parts.
func NewName(first, last string) (Name, error) {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	switch {
	case first == "":
		return Name{}, newError(ErrInvalidName, "first name cannot be empty")
	case last == "":
		return Name{}, newError(ErrInvalidName, "last name cannot be empty")
	case utf8.RuneCountInString(first) > maxNameLength:
		return Name{}, newError(ErrInvalidName, "first name cannot exceed 100 characters")
	case utf8.RuneCountInString(last) > maxNameLength:
		return Name{}, newError(ErrInvalidName, "last name cannot exceed 100 characters")
	}

	return Name{first: first, last: last}, nil
}

// First returns the first name.
func (n Name) First() string { return n.first }

// Last returns the last name.
func (n Name) Last() string { return n.last }

// String returns the full name.
func (n Name) String() string {
	return n.first + " " + n.last
}

// Email is a normalized email address.
type Email struct {
	value string
}

// NewEmail creates a validated email, trimmed and lower cased.
func NewEmail(email string) (Email, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" {
		return Email{}, newError(ErrInvalidEmail, "email cannot be empty")
	}

	if len(email) > maxEmailLength {
		return Email{}, newError(ErrInvalidEmail, "email cannot exceed 256 characters")
	}

	// Only plain addresses are accepted, no display names or comments.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return Email{}, newError(ErrInvalidEmail, "invalid email format")
	}

	return Email{value: email}, nil
}

// String returns the email address.
func (e Email) String() string { return e.value }

// Phone is a phone number with country code, keeping only the digits of the
// number.
type Phone struct {
	countryCode string
	number      string
}

// NewPhone creates a validated phone number.
func NewPhone(countryCode, number string) (Phone, error) {
	countryCode = strings.TrimSpace(countryCode)
	if countryCode == "" {
		return Phone{}, newError(ErrInvalidPhone, "country code cannot be empty")
	}

	if strings.TrimSpace(number) == "" {
		return Phone{}, newError(ErrInvalidPhone, "phone number cannot be empty")
	}

	digits := strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && unicode.IsDigit(r) {
			return r
		}

		return -1
	}, number)

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return Phone{}, newError(ErrInvalidPhone, "phone number must be between 7 and 15 digits")
	}

	return Phone{countryCode: countryCode, number: digits}, nil
}

// CountryCode returns the country code.
func (p Phone) CountryCode() string { return p.countryCode }

// Number returns the digits of the number.
func (p Phone) Number() string { return p.number }

// String returns the number in international format.
func (p Phone) String() string {
	return "+" + strings.TrimPrefix(p.countryCode, "+") + " " + p.number
}

// Address is a postal address. The state is optional.
type Address struct {
	street  string
	city    string
	state   string
	country string
	zipCode string
}

// NewAddress creates a validated address, trimming all parts.
func NewAddress(street, city, state, country, zipCode string) (Address, error) {
	a := Address{
		street:  strings.TrimSpace(street),
		city:    strings.TrimSpace(city),
		state:   strings.TrimSpace(state),
		country: strings.TrimSpace(country),
		zipCode: strings.TrimSpace(zipCode),
	}

	switch {
	case a.street == "":
		return Address{}, newError(ErrInvalidAddress, "street cannot be empty")
	case a.city == "":
		return Address{}, newError(ErrInvalidAddress, "city cannot be empty")
	case a.country == "":
		return Address{}, newError(ErrInvalidAddress, "country cannot be empty")
	case a.zipCode == "":
		return Address{}, newError(ErrInvalidAddress, "zip code cannot be empty")
	}

	return a, nil
}

// Street returns the street.
func (a Address) Street() string { return a.street }

// City returns the city.
func (a Address) City() string { return a.city }

// State returns the state, may be empty.
func (a Address) State() string { return a.state }

// Country returns the country.
func (a Address) Country() string { return a.country }

// ZipCode returns the zip code.
func (a Address) ZipCode() string { return a.zipCode }

// String returns the address on one line.
func (a Address) String() string {
	return a.street + ", " + a.city + ", " + a.state + " " + a.zipCode + ", " + a.country
}
