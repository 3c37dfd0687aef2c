package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/GeorgelPreput/pushcart-deploy/internal/backend"
	"github.com/GeorgelPreput/pushcart-deploy/internal/metadata"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/database"
)

// TestDeployToMongo runs a full assembly over a fragment tree and writes
// the result to a live MongoDB. Requires MONGO_CONNECTION_STRING.
func TestDeployToMongo(t *testing.T) {
	connString := os.Getenv("MONGO_CONNECTION_STRING")
	if connString == "" {
		t.Skip("MONGO_CONNECTION_STRING not set, skipping integration test")
	}

	// 1. Lay out a deployment tree
	root := t.TempDir()
	orders := filepath.Join(root, "pipelines", "sales", "orders")
	if err := os.MkdirAll(orders, 0o755); err != nil {
		t.Fatalf("Failed to create config tree: %v", err)
	}
	fragments := map[string]string{
		"sources.yaml": "sources:\n" +
			"  - origin: landing/orders\n" +
			"    datatype: csv\n" +
			"    target: orders_raw\n",
		"destinations.yaml": "destinations:\n" +
			"  - origin: orders_raw\n" +
			"    target: orders\n" +
			"    mode: append\n",
	}
	for name, content := range fragments {
		if err := os.WriteFile(filepath.Join(orders, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write fragment %s: %v", name, err)
		}
	}

	// 2. Assemble
	meta, err := metadata.New(root)
	if err != nil {
		t.Fatalf("Failed to create metadata pipeline: %v", err)
	}
	configs, diagnostics := meta.Assemble()
	if len(diagnostics) > 0 {
		t.Fatalf("Unexpected validation failures: %v", diagnostics)
	}
	if len(configs) != 1 {
		t.Fatalf("Expected 1 configuration, got %d", len(configs))
	}

	// 3. Write to MongoDB
	client, err := database.ConnectMongo(connString)
	if err != nil {
		t.Fatalf("Failed to connect to Mongo: %v", err)
	}
	defer client.Disconnect(context.Background())

	writer := &backend.MongoWriter{Client: client, Database: "pushcart_test"}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer client.Database("pushcart_test").Drop(context.Background())

	if err := writer.WriteConfigurations(ctx, configs); err != nil {
		t.Fatalf("Failed to write configurations: %v", err)
	}

	// 4. Verify the stage collections
	sources := client.Database("pushcart_test").Collection("sources")
	count, err := sources.CountDocuments(ctx, bson.M{"pipeline_name": "orders"})
	if err != nil {
		t.Fatalf("Failed to count source documents: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 source document, got %d", count)
	}

	var doc bson.M
	if err := sources.FindOne(ctx, bson.M{"pipeline_name": "orders"}).Decode(&doc); err != nil {
		t.Fatalf("Failed to find source document: %v", err)
	}
	if doc["target_schema_name"] != "sales" {
		t.Errorf("Expected target_schema_name sales, got %v", doc["target_schema_name"])
	}
	if doc["target"] != "orders_raw" {
		t.Errorf("Expected target orders_raw, got %v", doc["target"])
	}
}
