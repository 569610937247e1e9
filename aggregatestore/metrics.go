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

// Metrics collects the events of an EventStore.
type Metrics interface {
	EventsAppended(n int)
	ConcurrencyConflict()
	EventsReplayed(n int)
	SnapshotSaved()
	SnapshotFailed()
}

type nopMetrics struct{}

func (nopMetrics) EventsAppended(int)   {}
func (nopMetrics) ConcurrencyConflict() {}
func (nopMetrics) EventsReplayed(int)   {}
func (nopMetrics) SnapshotSaved()       {}
func (nopMetrics) SnapshotFailed()      {}
