// Package runner assembles the mint queue and worker from configuration.
package runner

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"media-notary-backend/internal/common/cache"
	"media-notary-backend/internal/common/config"
	"media-notary-backend/internal/features/mintjob/processor"
	"media-notary-backend/internal/features/mintjob/repository"
	"media-notary-backend/internal/features/mintjob/repository/memory"
	redisrepo "media-notary-backend/internal/features/mintjob/repository/redis"
	"media-notary-backend/internal/features/mintjob/worker"
	proofrepo "media-notary-backend/internal/features/proof/repository"
	"media-notary-backend/internal/features/proof/repository/cached"
	proofpg "media-notary-backend/internal/features/proof/repository/postgres"
	"media-notary-backend/internal/platform/ledger/ton"
	"media-notary-backend/internal/platform/objectstore"
	"media-notary-backend/internal/service/metadata"
)

// NewJobRepository selects the queue backend. The memory backend is only visible
// inside the current process.
func NewJobRepository(cfg config.QueueConfig, rdb goredis.UniversalClient) (repository.JobRepository, error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewJobRepository(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis queue backend requires a redis client")
		}
		return redisrepo.NewJobRepository(rdb, cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func Retention(cfg config.QueueConfig) repository.Retention {
	return repository.Retention{
		CompletedAge:  cfg.CompletedTTL,
		CompletedKeep: cfg.CompletedKeep,
		FailedAge:     cfg.FailedTTL,
	}
}

func WorkerOptions(cfg config.QueueConfig) worker.Options {
	return worker.Options{
		Attempts:      cfg.Attempts,
		BackoffBase:   cfg.BackoffBase,
		LeaseTTL:      cfg.LeaseTTL,
		PollTimeout:   cfg.PollTimeout,
		SweepInterval: cfg.SweepInterval,
		Retention:     Retention(cfg),
	}
}

// NewProofRepository returns the Postgres proof store, fronted by the Redis
// lookup cache when rdb is set and cfg.ProofCacheTTL is positive.
func NewProofRepository(cfg config.RedisConfig, db *sql.DB, rdb goredis.UniversalClient, logger zerolog.Logger) proofrepo.ProofRepository {
	repo := proofpg.NewPostgresRepository(db)
	if rdb == nil || cfg.ProofCacheTTL <= 0 {
		return repo
	}
	return cached.NewCachedRepository(repo, cache.New(rdb, "proof"), cfg.ProofCacheTTL, logger)
}

// NewWorker dials the ledger and object store and wires the mint processor.
func NewWorker(ctx context.Context, cfg *config.Config, repo repository.JobRepository, proofs processor.ProofWriter, logger zerolog.Logger) (*worker.Worker, error) {
	ledgerClient, err := ton.Dial(ctx, cfg.Ledger, logger.With().Str("component", "ledger").Logger())
	if err != nil {
		return nil, fmt.Errorf("dial ledger: %w", err)
	}

	store, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}

	publisher := metadata.NewPublisher(store, cfg.Storage.MetadataBucket, cfg.Storage.MetadataPublicBaseURL)
	proc := processor.New(ledgerClient, publisher, proofs, logger.With().Str("component", "processor").Logger())

	return worker.New(repo, proc, WorkerOptions(cfg.Queue), logger.With().Str("component", "worker").Logger()), nil
}
