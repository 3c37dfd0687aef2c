// Package backend persists validated pipeline configurations to a
// deployment target. The assembly core only depends on the Writer
// interface; how and where the metadata lands is the writer's concern.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GeorgelPreput/pushcart-deploy/pkg/sanitize"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/schema"
)

// StageNames lists the per-stage metadata collections every writer
// maintains, in write order.
var StageNames = []string{"sources", "transformations", "destinations"}

// Writer receives the validated configurations of one assembly run.
type Writer interface {
	WriteConfigurations(ctx context.Context, configs []*schema.Configuration) error
}

// StageDocument is one stage element flattened for persistence, still
// carrying the identity of the pipeline it belongs to.
type StageDocument struct {
	TargetSchemaName string
	PipelineName     string
	Fields           map[string]interface{}
}

// StageDocuments flattens one stage across all configurations into
// storage-ready documents: each element is rendered through its wire
// form, stamped with pipeline identity, and sanitized with empty values
// dropped.
func StageDocuments(configs []*schema.Configuration, stage string) ([]StageDocument, error) {
	var docs []StageDocument
	for _, cfg := range configs {
		for _, element := range stageElements(cfg, stage) {
			raw, err := json.Marshal(element)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s element: %w", stage, err)
			}
			var fields map[string]interface{}
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("failed to decode %s element: %w", stage, err)
			}
			fields["target_schema_name"] = cfg.TargetSchemaName
			fields["pipeline_name"] = cfg.PipelineName

			docs = append(docs, StageDocument{
				TargetSchemaName: cfg.TargetSchemaName,
				PipelineName:     cfg.PipelineName,
				Fields:           sanitize.Fields(fields, true),
			})
		}
	}
	return docs, nil
}

func stageElements(cfg *schema.Configuration, stage string) []interface{} {
	var elements []interface{}
	switch stage {
	case "sources":
		for _, s := range cfg.Sources {
			elements = append(elements, s)
		}
	case "transformations":
		for _, t := range cfg.Transformations {
			elements = append(elements, t)
		}
	case "destinations":
		for _, d := range cfg.Destinations {
			elements = append(elements, d)
		}
	}
	return elements
}
