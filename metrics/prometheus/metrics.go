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

// Package prometheus collects the metrics of an aggregatestore.EventStore with
// Prometheus.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/looplab/eventlog/aggregatestore"
)

// DefaultNamespace is the namespace of all metrics.
const DefaultNamespace = "eventlog"

// Metrics implements aggregatestore.Metrics using Prometheus.
type Metrics struct {
	eventsAppended       prometheus.Counter
	eventsReplayed       prometheus.Counter
	concurrencyConflicts prometheus.Counter
	snapshots            *prometheus.CounterVec
}

var _ aggregatestore.Metrics = (*Metrics)(nil)

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		eventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "events_appended_total",
			Help:      "Total number of events appended to the event log",
		}),
		eventsReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "events_replayed_total",
			Help:      "Total number of events applied when loading customers",
		}),
		concurrencyConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "concurrency_conflicts_total",
			Help:      "Total number of appends rejected by the expected version check",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Name:      "snapshots_total",
			Help:      "Total number of snapshots taken, by result",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.eventsAppended,
		m.eventsReplayed,
		m.concurrencyConflicts,
		m.snapshots,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// EventsAppended implements the EventsAppended method of the
// aggregatestore.Metrics interface.
func (m *Metrics) EventsAppended(n int) {
	m.eventsAppended.Add(float64(n))
}

// ConcurrencyConflict implements the ConcurrencyConflict method of the
// aggregatestore.Metrics interface.
func (m *Metrics) ConcurrencyConflict() {
	m.concurrencyConflicts.Inc()
}

// EventsReplayed implements the EventsReplayed method of the
// aggregatestore.Metrics interface.
func (m *Metrics) EventsReplayed(n int) {
	m.eventsReplayed.Add(float64(n))
}

// SnapshotSaved implements the SnapshotSaved method of the
// aggregatestore.Metrics interface.
func (m *Metrics) SnapshotSaved() {
	m.snapshots.WithLabelValues("saved").Inc()
}

// SnapshotFailed implements the SnapshotFailed method of the
// aggregatestore.Metrics interface.
func (m *Metrics) SnapshotFailed() {
	m.snapshots.WithLabelValues("failed").Inc()
}
