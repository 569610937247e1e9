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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "customers", cfg.MongoDatabase)
	assert.Equal(t, 10, cfg.SnapshotInterval)
	assert.Equal(t, 10, cfg.RelayMaxAttempts)
	assert.Equal(t, time.Second, cfg.RelayMinBackoff)
	assert.Equal(t, 5*time.Minute, cfg.RelayMaxBackoff)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.False(t, cfg.Development)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("MONGODB_DATABASE", "test")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RELAY_MAX_BACKOFF", "1m")
	t.Setenv("DEVELOPMENT", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.MongoDatabase)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Minute, cfg.RelayMaxBackoff)
	assert.True(t, cfg.Development)
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MONGODB_DATABASE=fromfile\nSNAPSHOT_INTERVAL=20\n"), 0o600))

	t.Setenv("SNAPSHOT_INTERVAL", "30")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "fromfile", cfg.MongoDatabase)
	// The environment wins over the file.
	assert.Equal(t, 30, cfg.SnapshotInterval)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Error("there should be no error for a missing file:", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL", "0")

	if _, err := Load(""); err == nil {
		t.Error("there should be an error")
	}

	t.Setenv("SNAPSHOT_INTERVAL", "10")
	t.Setenv("RELAY_MIN_BACKOFF", "10m")

	if _, err := Load(""); err == nil {
		t.Error("there should be an error")
	}
}
