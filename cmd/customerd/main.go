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

// Command customerd relays the customer outbox to the event log and inspects
// the stored customers.
//
// Usage:
//
//	customerd [-env file] relay
//	customerd [-env file] outbox
//	customerd [-env file] history <customer id>
//	customerd [-env file] rebuild <customer id>
//	customerd [-env file] snapshot <customer id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/looplab/eventlog/cmd/customerd/internal/config"
)

var errUsage = errors.New("usage")

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-env file] <command> [customer id]\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "Commands:")
	fmt.Fprintln(flag.CommandLine.Output(), "  relay      append staged commits to the event log until stopped")
	fmt.Fprintln(flag.CommandLine.Output(), "  outbox     list the staged commits")
	fmt.Fprintln(flag.CommandLine.Output(), "  history    print the events of a customer")
	fmt.Fprintln(flag.CommandLine.Output(), "  rebuild    replay a customer and compare it with the projection")
	fmt.Fprintln(flag.CommandLine.Output(), "  snapshot   take a snapshot of a customer")
	fmt.Fprintln(flag.CommandLine.Output())
	flag.PrintDefaults()
}

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("could not load config: ", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("could not create logger: ", err)
	}

	if err := run(cfg, logger, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}

		logger.Error("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	_ = logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := args[0]

	var id int
	switch cmd {
	case "relay", "outbox":
	case "history", "rebuild", "snapshot":
		if len(args) != 2 {
			return errUsage
		}

		var err error
		if id, err = strconv.Atoi(args[1]); err != nil || id <= 0 {
			return fmt.Errorf("%w: invalid customer ID %q", errUsage, args[1])
		}
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "relay":
		return a.relay(ctx)
	case "outbox":
		return a.listOutbox(ctx, os.Stdout)
	case "history":
		return a.history(ctx, os.Stdout, id)
	case "rebuild":
		return a.rebuild(ctx, os.Stdout, id)
	default:
		return a.snapshot(ctx, id)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	zc.Level = level

	return zc.Build()
}
