package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"media-notary-backend/internal/common/config"
	"media-notary-backend/internal/common/logger"
	"media-notary-backend/internal/features/mintjob/runner"
	mintjobservice "media-notary-backend/internal/features/mintjob/service"
	"media-notary-backend/internal/platform/postgres"
	"media-notary-backend/internal/platform/redis"
)

// commandContext loads configuration once and opens collaborators on demand.
type commandContext struct {
	cfg *config.Config

	openDB   func(ctx context.Context, cfg *config.Config) (*sql.DB, func(), error)
	openJobs func(ctx context.Context, cfg *config.Config) (mintjobservice.MintJobService, func(), error)
}

func newCommandContext() *commandContext {
	return &commandContext{
		openDB:   openDB,
		openJobs: openJobs,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, closeFn, err := c.openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(db)
}

func (c *commandContext) withJobs(ctx context.Context, fn func(svc mintjobservice.MintJobService) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := c.openJobs(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "notaryctl",
		Short:         "Media notary administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger.InitWithWriter(cmd.ErrOrStderr(), "notaryctl", cfg.Debug)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, func(), error) {
	client, err := postgres.NewClient(ctx, cfg.Postgres, logger.Component("postgres"))
	if err != nil {
		return nil, nil, err
	}
	return client.DB(), func() { client.Close() }, nil
}

func openJobs(ctx context.Context, cfg *config.Config) (mintjobservice.MintJobService, func(), error) {
	if cfg.Queue.Backend != "redis" {
		return nil, nil, fmt.Errorf("jobs commands need QUEUE_BACKEND=redis, got %q", cfg.Queue.Backend)
	}
	rdb, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	repo, err := runner.NewJobRepository(cfg.Queue, rdb.Client)
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	svc := mintjobservice.NewMintJobService(repo, runner.Retention(cfg.Queue), logger.Component("mintjob"))
	return svc, func() { rdb.Close() }, nil
}
