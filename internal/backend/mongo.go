package backend

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/GeorgelPreput/pushcart-deploy/pkg/logger"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/schema"
)

const defaultMongoDatabase = "pushcart"

// MongoWriter rewrites one collection per pipeline stage in MongoDB. The
// sanitizer's dot-to-underscore key rewrite exists for this writer: Mongo
// field names may not contain dots.
type MongoWriter struct {
	Client   *mongo.Client
	Database string
}

func NewMongoWriter(client *mongo.Client) *MongoWriter {
	return &MongoWriter{Client: client, Database: defaultMongoDatabase}
}

func (w *MongoWriter) WriteConfigurations(ctx context.Context, configs []*schema.Configuration) error {
	db := w.Client.Database(w.Database)

	for _, stage := range StageNames {
		docs, err := StageDocuments(configs, stage)
		if err != nil {
			return err
		}

		coll := db.Collection(stage)
		if err := coll.Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", stage, err)
		}

		if len(docs) > 0 {
			payload := make([]interface{}, len(docs))
			for i, doc := range docs {
				payload[i] = doc.Fields
			}
			if _, err := coll.InsertMany(ctx, payload); err != nil {
				return fmt.Errorf("failed to write collection %s: %w", stage, err)
			}
		}

		logger.Infof("Wrote %s metadata collection: %d document(s)", stage, len(docs))
	}
	return nil
}
