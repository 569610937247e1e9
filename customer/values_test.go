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
	"strings"
	"testing"
)

func TestNewName(t *testing.T) {
	n, err := NewName("  John ", " Doe")
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if n.First() != "John" || n.Last() != "Doe" {
		t.Error("the name should be trimmed:", n)
	}

	if n.String() != "John Doe" {
		t.Error("the full name should be correct:", n.String())
	}

	for name, tc := range map[string][2]string{
		"empty first": {" ", "Doe"},
		"empty last":  {"John", ""},
		"long first":  {strings.Repeat("a", 101), "Doe"},
		"long last":   {"John", strings.Repeat("a", 101)},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewName(tc[0], tc[1]); !errors.Is(err, ErrInvalidName) {
				t.Error("there should be an invalid name error:", err)
			}
		})
	}

	if _, err := NewName(strings.Repeat("a", 100), "Doe"); err != nil {
		t.Error("there should be no error for 100 characters:", err)
	}
}

func TestNewEmail(t *testing.T) {
	e, err := NewEmail("  John.Doe@Example.COM ")
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if e.String() != "john.doe@example.com" {
		t.Error("the email should be normalized:", e)
	}

	other, _ := NewEmail("john.doe@example.com")
	if e != other {
		t.Error("equal emails should compare equal")
	}

	for name, email := range map[string]string{
		"empty":        "  ",
		"no at":        "john.doe.example.com",
		"display name": "John <john@example.com>",
		"too long":     strings.Repeat("a", 250) + "@example.com",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewEmail(email); !errors.Is(err, ErrInvalidEmail) {
				t.Error("there should be an invalid email error:", err)
			}
		})
	}
}

func TestNewPhone(t *testing.T) {
	p, err := NewPhone(" 46 ", "070-123 45 67")
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if p.CountryCode() != "46" || p.Number() != "0701234567" {
		t.Error("the phone should be normalized:", p.CountryCode(), p.Number())
	}

	if p.String() != "+46 0701234567" {
		t.Error("the string should be correct:", p.String())
	}

	for name, tc := range map[string][2]string{
		"empty country code": {"", "0701234567"},
		"empty number":       {"46", " "},
		"too short":          {"46", "123-456"},
		"too long":           {"46", "1234567890123456"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewPhone(tc[0], tc[1]); !errors.Is(err, ErrInvalidPhone) {
				t.Error("there should be an invalid phone error:", err)
			}
		})
	}
}

func TestNewAddress(t *testing.T) {
	a, err := NewAddress(" Main St 1 ", "Springfield", "", "US ", "12345")
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if a.Street() != "Main St 1" || a.Country() != "US" || a.State() != "" {
		t.Error("the address should be trimmed:", a)
	}

	for name, tc := range map[string][5]string{
		"no street":   {"", "City", "", "US", "1"},
		"no city":     {"Street", "", "", "US", "1"},
		"no country":  {"Street", "City", "", "", "1"},
		"no zip code": {"Street", "City", "", "US", ""},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewAddress(tc[0], tc[1], tc[2], tc[3], tc[4]); !errors.Is(err, ErrInvalidAddress) {
				t.Error("there should be an invalid address error:", err)
			}

			_, err := NewAddress(tc[0], tc[1], tc[2], tc[3], tc[4])
			if !IsDomainError(err) {
				t.Error("the error should be a domain error:", err)
			}
		})
	}
}
