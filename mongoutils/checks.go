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

// Package mongoutils holds helpers shared by the MongoDB backed stores.
package mongoutils

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingCollectionName       = errors.New("missing collection name")
	ErrInvalidCharInCollectionName = errors.New("invalid char in collection name")
	ErrDuplicateCollectionName     = errors.New("duplicate collection name")
)

// CheckCollectionName checks if a collection name is valid for mongodb.
// Spaces are rejected because they are hard to see by humans, dollar signs
// and "system." prefixes are reserved by MongoDB.
func CheckCollectionName(name string) error {
	if name == "" {
		return ErrMissingCollectionName
	} else if strings.ContainsAny(name, " $\x00") || strings.HasPrefix(name, "system.") {
		return fmt.Errorf("%w: %q", ErrInvalidCharInCollectionName, name)
	}

	return nil
}

// CheckCollectionNames checks that all names are valid and different.
func CheckCollectionNames(names ...string) error {
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		if err := CheckCollectionName(name); err != nil {
			return err
		}

		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateCollectionName, name)
		}

		seen[name] = struct{}{}
	}

	return nil
}
