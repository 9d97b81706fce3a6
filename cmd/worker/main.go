package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"media-notary-backend/internal/common/config"
	"media-notary-backend/internal/common/logger"
	"media-notary-backend/internal/features/mintjob/repository"
	"media-notary-backend/internal/features/mintjob/runner"
	"media-notary-backend/internal/platform/postgres"
	"media-notary-backend/internal/platform/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}
	logger.Init("media-notary-worker", cfg.Debug)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid worker configuration")
	}
	if cfg.Queue.Backend != "redis" {
		logger.Fatal().Str("backend", cfg.Queue.Backend).Msg("Standalone worker needs QUEUE_BACKEND=redis; the memory queue runs inside the API process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewClient(ctx, cfg.Postgres, logger.Component("postgres"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	rdb, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	jobRepo, err := runner.NewJobRepository(cfg.Queue, rdb.Client)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize mint queue")
	}

	proofRepo := runner.NewProofRepository(cfg.Redis, pg.DB(), rdb.Client, logger.Component("proof"))

	w, err := runner.NewWorker(ctx, cfg, jobRepo, proofRepo, logger.Component("mint"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build mint worker")
	}

	logger.Info().Str("queue", cfg.Queue.Name).Msg("Starting mint worker")
	err = w.Run(ctx)
	switch {
	case errors.Is(err, repository.ErrLeaseLost):
		// exit non-zero so the supervisor restarts us behind the new lease holder
		logger.Fatal().Err(err).Msg("Mint worker lost its lease")
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Fatal().Err(err).Msg("Mint worker stopped")
	}

	logger.Info().Msg("Mint worker exited")
}
