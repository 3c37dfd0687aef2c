package backend

import (
	"context"

	"github.com/GeorgelPreput/pushcart-deploy/pkg/logger"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/schema"
)

// DryRunWriter reports what a real writer would persist without touching
// any backend. It is the default when no backend is configured.
type DryRunWriter struct{}

func (DryRunWriter) WriteConfigurations(ctx context.Context, configs []*schema.Configuration) error {
	for _, stage := range StageNames {
		docs, err := StageDocuments(configs, stage)
		if err != nil {
			return err
		}
		logger.Infof("[DRY RUN] Would write %s metadata: %d document(s)", stage, len(docs))
	}
	for _, cfg := range configs {
		logger.Infof("[DRY RUN] Pipeline %s.%s: %d source(s), %d transformation(s), %d destination(s)",
			cfg.TargetSchemaName, cfg.PipelineName,
			len(cfg.Sources), len(cfg.Transformations), len(cfg.Destinations))
	}
	return nil
}
