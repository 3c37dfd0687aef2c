package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GeorgelPreput/pushcart-deploy/internal/backend"
	"github.com/GeorgelPreput/pushcart-deploy/internal/config"
	"github.com/GeorgelPreput/pushcart-deploy/internal/metadata"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/database"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/logger"
)

type DeployOptions struct {
	ConfigDir string
	Backend   string
}

func NewDeployCmd() *cobra.Command {
	opts := &DeployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Assemble pipeline metadata and write it to the backend",
		RunE: func(c *cobra.Command, args []string) error {
			return runDeploy(c.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigDir, "config-dir", "c", ".", "Deployment configuration directory path")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "dry-run", "Metadata backend: mongo, sqlserver or dry-run")

	return cmd
}

func runDeploy(ctx context.Context, opts *DeployOptions) error {
	writer, cleanup, err := newWriter(ctx, opts.Backend)
	if err != nil {
		return err
	}
	defer cleanup()

	meta, err := metadata.New(opts.ConfigDir)
	if err != nil {
		return err
	}

	configs, diagnostics := meta.Assemble()

	if len(configs) > 0 {
		if err := writer.WriteConfigurations(ctx, configs); err != nil {
			return fmt.Errorf("failed to write pipeline metadata: %w", err)
		}
	}

	if len(diagnostics) > 0 {
		for _, diag := range diagnostics {
			logger.Errorf("%v", diag)
		}
		return fmt.Errorf("%d pipeline(s) failed validation", len(diagnostics))
	}

	logger.Infof("Deployed metadata for %d pipeline(s).", len(configs))
	return nil
}

func newWriter(ctx context.Context, name string) (backend.Writer, func(), error) {
	cfg := config.Load()
	noop := func() {}

	switch name {
	case "mongo":
		uri, err := cfg.RequireMongo()
		if err != nil {
			return nil, noop, err
		}
		client, err := database.ConnectMongo(uri)
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() { _ = client.Disconnect(ctx) }
		return backend.NewMongoWriter(client), cleanup, nil
	case "sqlserver":
		connString, err := cfg.RequireSQL()
		if err != nil {
			return nil, noop, err
		}
		db, err := database.ConnectSQL(connString)
		if err != nil {
			return nil, noop, err
		}
		return backend.NewSQLWriter(db), func() { db.Close() }, nil
	case "dry-run":
		return backend.DryRunWriter{}, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown backend %q (expected mongo, sqlserver or dry-run)", name)
}
