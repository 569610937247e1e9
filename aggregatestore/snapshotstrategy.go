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

package aggregatestore

// SnapshotStrategy decides if a snapshot should be taken after an append that
// moved the customer from previousVersion to newVersion.
type SnapshotStrategy interface {
	ShouldTakeSnapshot(previousVersion, newVersion int) bool
}

// NoSnapshotStrategy no snapshot should be taken.
type NoSnapshotStrategy struct{}

// ShouldTakeSnapshot implements the ShouldTakeSnapshot method of the
// SnapshotStrategy interface, it never takes a snapshot.
func (s NoSnapshotStrategy) ShouldTakeSnapshot(_, _ int) bool {
	return false
}

// EveryNumberVersionsStrategy takes a snapshot every time a multiple of the
// interval is reached or passed, also when one append spans several versions.
type EveryNumberVersionsStrategy struct {
	interval int
}

// NewEveryNumberVersionsStrategy creates a strategy with the interval, an
// interval below 1 is treated as 1.
func NewEveryNumberVersionsStrategy(interval int) *EveryNumberVersionsStrategy {
	if interval < 1 {
		interval = 1
	}

	return &EveryNumberVersionsStrategy{
		interval: interval,
	}
}

// ShouldTakeSnapshot implements the ShouldTakeSnapshot method of the
// SnapshotStrategy interface. It is true when newVersion is in a later
// interval than previousVersion.
func (s *EveryNumberVersionsStrategy) ShouldTakeSnapshot(previousVersion, newVersion int) bool {
	return newVersion/s.interval > previousVersion/s.interval
}
