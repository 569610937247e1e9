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

// Package config loads the configuration of customerd from the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config is the configuration of customerd.
type Config struct {
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`
	// RedisAddr enables the Redis snapshot store, snapshots are stored in
	// MongoDB otherwise.
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	SnapshotInterval int `mapstructure:"SNAPSHOT_INTERVAL"`

	RelaySchedule    string        `mapstructure:"RELAY_SCHEDULE"`
	RelayMaxAttempts int           `mapstructure:"RELAY_MAX_ATTEMPTS"`
	RelayMinBackoff  time.Duration `mapstructure:"RELAY_MIN_BACKOFF"`
	RelayMaxBackoff  time.Duration `mapstructure:"RELAY_MAX_BACKOFF"`

	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// TracingHost is the Zipkin compatible collector, tracing is off if empty.
	TracingHost string `mapstructure:"TRACING_HOST"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Development bool   `mapstructure:"DEVELOPMENT"`
}

var keys = []string{
	"MONGODB_URI",
	"MONGODB_DATABASE",
	"REDIS_ADDR",
	"REDIS_PREFIX",
	"SNAPSHOT_INTERVAL",
	"RELAY_SCHEDULE",
	"RELAY_MAX_ATTEMPTS",
	"RELAY_MIN_BACKOFF",
	"RELAY_MAX_BACKOFF",
	"METRICS_ADDR",
	"TRACING_HOST",
	"LOG_LEVEL",
	"DEVELOPMENT",
}

// Load reads the configuration from the environment. Values in envFile are
// used for variables that are not set, a missing file is not an error.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "customers")
	v.SetDefault("REDIS_PREFIX", "customer_snapshot")
	v.SetDefault("SNAPSHOT_INTERVAL", 10)
	v.SetDefault("RELAY_SCHEDULE", "*/15 * * * * * *")
	v.SetDefault("RELAY_MAX_ATTEMPTS", 10)
	v.SetDefault("RELAY_MIN_BACKOFF", time.Second)
	v.SetDefault("RELAY_MAX_BACKOFF", 5*time.Minute)
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")

		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not read %s: %w", envFile, err)
		}
	}

	v.AutomaticEnv()

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the required values.
func (c *Config) Validate() error {
	switch {
	case c.MongoURI == "":
		return errors.New("MONGODB_URI is required")
	case c.MongoDatabase == "":
		return errors.New("MONGODB_DATABASE is required")
	case c.SnapshotInterval < 1:
		return errors.New("SNAPSHOT_INTERVAL must be at least 1")
	case c.RelayMaxAttempts < 1:
		return errors.New("RELAY_MAX_ATTEMPTS must be at least 1")
	case c.RelayMinBackoff <= 0 || c.RelayMaxBackoff < c.RelayMinBackoff:
		return errors.New("RELAY_MIN_BACKOFF and RELAY_MAX_BACKOFF must form a valid range")
	}

	return nil
}
