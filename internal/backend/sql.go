package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/GeorgelPreput/pushcart-deploy/pkg/logger"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/schema"
)

// SQLWriter rewrites one pushcart_<stage> metadata table per pipeline
// stage in SQL Server. Each run replaces the previous rows inside a
// transaction and stamps them with a fresh run ID.
type SQLWriter struct {
	DB *sql.DB
}

func NewSQLWriter(db *sql.DB) *SQLWriter {
	return &SQLWriter{DB: db}
}

func (w *SQLWriter) WriteConfigurations(ctx context.Context, configs []*schema.Configuration) error {
	runID := uuid.NewString()

	for _, stage := range StageNames {
		docs, err := StageDocuments(configs, stage)
		if err != nil {
			return err
		}
		if err := w.writeStage(ctx, stage, runID, docs); err != nil {
			return err
		}
		logger.Infof("Wrote pushcart_%s metadata table: %d row(s), run %s", stage, len(docs), runID)
	}
	return nil
}

func (w *SQLWriter) writeStage(ctx context.Context, stage, runID string, docs []StageDocument) error {
	table := "pushcart_" + stage

	ensure := fmt.Sprintf(`
		IF OBJECT_ID('%s', 'U') IS NULL
		CREATE TABLE %s (
			run_id             NVARCHAR(36)  NOT NULL,
			target_schema_name NVARCHAR(255) NOT NULL,
			pipeline_name      NVARCHAR(255) NOT NULL,
			document           NVARCHAR(MAX) NOT NULL
		)`, table, table)
	if _, err := w.DB.ExecContext(ctx, ensure); err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", table, err)
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("failed to clear table %s: %w", table, err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (run_id, target_schema_name, pipeline_name, document) VALUES (@p1, @p2, @p3, @p4)",
		table,
	)
	for _, doc := range docs {
		document, err := json.Marshal(doc.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode %s row: %w", stage, err)
		}
		if _, err := tx.ExecContext(ctx, insert, runID, doc.TargetSchemaName, doc.PipelineName, string(document)); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	return tx.Commit()
}
