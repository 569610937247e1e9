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

package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/looplab/eventlog/eventstore"
)

func redisAddr(t *testing.T) string {
	t.Helper()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Log("could not terminate container:", err)
		}
	})

	if err != nil {
		t.Fatal("could not start Redis container:", err)
	}

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatal("could not get Redis endpoint:", err)
	}

	return addr
}

func TestSnapshotStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}

	store, err := NewSnapshotStore(redisAddr(t), WithPrefix("test_"+hex.EncodeToString(b)))
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if store == nil {
		t.Fatal("there should be a store")
	}

	defer store.Close()

	eventstore.SnapshotAcceptanceTest(t, store, context.Background())
}

func TestWithPrefix(t *testing.T) {
	s := &SnapshotStore{prefix: DefaultPrefix}

	if s.key(42) != "customer_snapshot:42" {
		t.Error("the key should be correct:", s.key(42))
	}

	if err := WithPrefix("")(s); err == nil {
		t.Error("there should be an error")
	}

	if err := WithPrefix("other")(s); err != nil {
		t.Error("there should be no error:", err)
	}

	if s.key(42) != "other:42" {
		t.Error("the key should be correct:", s.key(42))
	}
}
