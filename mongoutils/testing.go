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

package mongoutils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// TestImage is the MongoDB image used by integration tests.
const TestImage = "mongo:7"

// NewTestClient returns a client for integration tests. It uses MongoDB at
// MONGODB_ADDR if set, otherwise a single node replica set is started in a
// container which is removed when the test ends. Transactions need a
// replica set.
func NewTestClient(t *testing.T) *mongo.Client {
	t.Helper()

	ctx := context.Background()
	opts := options.Client()

	if addr := os.Getenv("MONGODB_ADDR"); addr != "" {
		opts.ApplyURI("mongodb://" + addr)
	} else {
		container, err := mongodb.Run(ctx, TestImage, mongodb.WithReplicaSet("rs0"))
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(container); err != nil {
				t.Log("could not terminate container:", err)
			}
		})

		if err != nil {
			t.Fatal("could not start MongoDB container:", err)
		}

		uri, err := container.ConnectionString(ctx)
		if err != nil {
			t.Fatal("could not get connection string:", err)
		}

		opts.ApplyURI(uri).SetDirect(true)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		t.Fatal("could not connect to MongoDB:", err)
	}

	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		t.Fatal("could not ping MongoDB:", err)
	}

	return client
}

// RandomDBName returns a random database name for a test.
func RandomDBName(t *testing.T) string {
	t.Helper()

	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}

	db := "test-" + hex.EncodeToString(b)
	t.Log("using DB:", db)

	return db
}
