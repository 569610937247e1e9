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

// Package eventlog is the persistence core for event sourced customers.
//
// The root package holds the shared contracts: the event envelope and its
// data registry, the append-only EventStore with optimistic concurrency, the
// SnapshotStore and the Outbox used to stage events together with the
// current-state projection. Implementations live in sub packages, for example
// eventstore/memory and eventstore/mongodb.
package eventlog
