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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/kr/pretty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"github.com/looplab/eventlog"
	"github.com/looplab/eventlog/aggregatestore"
	"github.com/looplab/eventlog/cmd/customerd/internal/config"
	"github.com/looplab/eventlog/commandhandler"
	"github.com/looplab/eventlog/eventstore/mongodb"
	"github.com/looplab/eventlog/eventstore/tracing"
	metrics "github.com/looplab/eventlog/metrics/prometheus"
	"github.com/looplab/eventlog/outbox"
	outboxMongo "github.com/looplab/eventlog/outbox/mongodb"
	repoMongo "github.com/looplab/eventlog/repo/mongodb"
	"github.com/looplab/eventlog/snapshotstore/redis"
)

const serviceName = "customerd"

// errProjectionDiffers is when a replayed customer differs from its projection.
var errProjectionDiffers = errors.New("projection differs from the event log")

type app struct {
	cfg    *config.Config
	logger *zap.Logger

	client   *mongo.Client
	store    *aggregatestore.EventStore
	outbox   *outboxMongo.Outbox
	handler  *commandhandler.Handler
	registry *prometheus.Registry

	relayErrors prometheus.Counter
	closers     []io.Closer
}

func newApp(cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.TracingHost != "" {
		closer, err := newTracer(serviceName, cfg.TracingHost)
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, closer)
	}

	if a.client, err = mongodb.Connect(cfg.MongoURI); err != nil {
		return nil, err
	}

	events, err := mongodb.NewEventStoreWithClient(a.client, cfg.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("could not create event store: %w", err)
	}

	traced := tracing.NewEventStore(events)

	var snapshots eventlog.SnapshotStore = traced
	if cfg.RedisAddr != "" {
		s, err := redis.NewSnapshotStore(cfg.RedisAddr, redis.WithPrefix(cfg.RedisPrefix))
		if err != nil {
			return nil, fmt.Errorf("could not create snapshot store: %w", err)
		}

		a.closers = append(a.closers, s)
		snapshots = s
	}

	m, err := metrics.NewMetrics(a.registry)
	if err != nil {
		return nil, err
	}

	a.relayErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.DefaultNamespace,
		Name:      "outbox_relay_errors_total",
		Help:      "Total number of commits the outbox relay could not append",
	})
	if err := a.registry.Register(a.relayErrors); err != nil {
		return nil, err
	}

	if a.store, err = aggregatestore.New(traced,
		aggregatestore.WithSnapshotStore(snapshots),
		aggregatestore.WithSnapshotStrategy(aggregatestore.NewEveryNumberVersionsStrategy(cfg.SnapshotInterval)),
		aggregatestore.WithLogger(logger),
		aggregatestore.WithMetrics(m),
	); err != nil {
		return nil, err
	}

	if a.outbox, err = outboxMongo.NewOutboxWithClient(a.client, cfg.MongoDatabase, a.store,
		outboxMongo.WithRelayOptions(
			outbox.WithSchedule(cfg.RelaySchedule),
			outbox.WithMaxAttempts(cfg.RelayMaxAttempts),
			outbox.WithBackoff(cfg.RelayMinBackoff, cfg.RelayMaxBackoff),
			outbox.WithLogger(logger),
		),
	); err != nil {
		return nil, fmt.Errorf("could not create outbox: %w", err)
	}

	db, err := repoMongo.NewDB(a.client, cfg.MongoDatabase, repoMongo.WithOutbox(a.outbox))
	if err != nil {
		return nil, fmt.Errorf("could not create customer repo: %w", err)
	}

	if a.handler, err = commandhandler.NewHandler(db.NewRepo, a.store,
		commandhandler.WithOutbox(a.outbox),
		commandhandler.WithLogger(logger),
	); err != nil {
		return nil, err
	}

	return a, nil
}

// Close releases all connections, in reverse order of creation.
func (a *app) Close() {
	if a.outbox != nil {
		if err := a.outbox.Close(); err != nil {
			a.logger.Warn("could not close outbox", zap.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("could not close event store", zap.Error(err))
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("could not close", zap.Error(err))
		}
	}

	if a.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.client.Disconnect(ctx); err != nil {
			a.logger.Warn("could not disconnect from DB", zap.Error(err))
		}
	}
}

// relay runs the outbox relay and serves the metrics until ctx is done.
func (a *app) relay(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// Catch up before waiting for the first scheduled sweep.
	if err := a.outbox.Sweep(ctx); err != nil {
		a.logger.Warn("could not sweep outbox", zap.Error(err))
	}

	a.outbox.Start()
	a.logger.Info("relaying outbox",
		zap.String("schedule", a.cfg.RelaySchedule),
		zap.String("metrics_addr", a.cfg.MetricsAddr))

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("stopping relay")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("could not stop metrics server", zap.Error(err))
			}

			return a.outbox.Close()
		case err := <-a.outbox.Errors():
			a.relayErrors.Inc()

			var outboxErr *eventlog.OutboxError
			if errors.As(err, &outboxErr) && outboxErr.Commit != nil {
				a.logger.Debug("relay error",
					zap.Stringer("commit", outboxErr.Commit),
					zap.Error(outboxErr.Err))
			}
		}
	}
}

func (a *app) listOutbox(ctx context.Context, w io.Writer) error {
	staged, err := a.outbox.Staged(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMMIT\tCUSTOMER\tFROM\tATTEMPTS\tRETRY AT\tDEAD")

	for _, c := range staged {
		retryAt := "-"
		if !c.RetryAt.IsZero() {
			retryAt = c.RetryAt.Format(time.RFC3339)
		}

		fmt.Fprintf(tw, "%s\t%d\tv%d\t%d\t%s\t%t\n",
			c.ID, c.CustomerID, c.ExpectedVersion, c.Attempts, retryAt, c.Dead)
	}

	return tw.Flush()
}

func (a *app) history(ctx context.Context, w io.Writer, id int) error {
	h, err := a.handler.History(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "customer %d at v%d, %d events\n", h.CustomerID, h.CurrentVersion, len(h.Events))

	for _, e := range h.Events {
		fmt.Fprintf(w, "v%-4d #%-4d %s %s %# v\n",
			e.Version(), e.Sequence(), e.OccurredOn().Format(time.RFC3339Nano),
			e.EventType(), pretty.Formatter(e.Data()))
	}

	return nil
}

// rebuild replays the customer from the event log and compares it with the
// stored projection.
func (a *app) rebuild(ctx context.Context, w io.Writer, id int) error {
	replayed, err := a.store.Load(ctx, id)
	if err != nil {
		return err
	}

	projected, err := a.handler.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%# v\n", pretty.Formatter(replayed.State()))

	diff := pretty.Diff(projected.State(), replayed.State())
	if len(diff) == 0 {
		fmt.Fprintf(w, "customer %d at v%d: projection matches the event log\n", id, replayed.Version())

		return nil
	}

	for _, d := range diff {
		fmt.Fprintln(w, "projection -> log:", d)
	}

	return fmt.Errorf("%w: customer %d", errProjectionDiffers, id)
}

func (a *app) snapshot(ctx context.Context, id int) error {
	c, err := a.store.Load(ctx, id)
	if err != nil {
		return err
	}

	if err := a.store.SaveSnapshot(ctx, c); err != nil {
		return err
	}

	a.logger.Info("snapshot taken", zap.Int("customer_id", id), zap.Int("version", c.Version()))

	return nil
}
