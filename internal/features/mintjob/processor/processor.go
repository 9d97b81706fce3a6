// Package processor drives one mint job through PREDICT, PUBLISH, MINT, RECONCILE and PERSIST.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"media-notary-backend/internal/features/mintjob/models"
	"media-notary-backend/internal/features/mintjob/worker"
	proofmodels "media-notary-backend/internal/features/proof/models"
	"media-notary-backend/internal/platform/ledger"
	"media-notary-backend/internal/service/metadata"
)

// Progress reported after each completed step.
const (
	ProgressPredicted  = 15
	ProgressPublished  = 35
	ProgressMinted     = 65
	ProgressReconciled = 85
	ProgressPersisted  = 100
)

type Ledger interface {
	TreeAddress() string
	FetchCounter(ctx context.Context, tree string) (uint64, error)
	DeriveIdentifier(tree string, index uint64) (string, error)
	Mint(ctx context.Context, owner, metadataURI string) (ledger.MintResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, in metadata.Input) (string, error)
}

type ProofWriter interface {
	Upsert(ctx context.Context, rec *proofmodels.ProofRecord) (*proofmodels.ProofRecord, error)
}

type Processor struct {
	ledger    Ledger
	publisher Publisher
	proofs    ProofWriter
	logger    zerolog.Logger
	now       func() time.Time
}

func New(l Ledger, publisher Publisher, proofs ProofWriter, logger zerolog.Logger) *Processor {
	return &Processor{
		ledger:    l,
		publisher: publisher,
		proofs:    proofs,
		logger:    logger,
		now:       time.Now,
	}
}

// Process is only correct while a single worker runs jobs: the identifier predicted
// in PREDICT goes stale as soon as anyone else mints into the tree.
func (p *Processor) Process(ctx context.Context, job *models.Job, reporter worker.Reporter) (*models.Result, error) {
	log := p.logger.With().Str("job_id", job.ID).Logger()

	cp := job.Checkpoint
	if cp != nil && cp.AssetIdentifier != "" {
		log.Info().Str("tx", cp.TxSignature).Msg("Resuming after recorded mint")
	} else {
		minted, err := p.predictPublishMint(ctx, job, reporter, log)
		if err != nil {
			return nil, err
		}
		cp = minted
	}

	p.reconcile(cp, log)
	p.progress(ctx, reporter, ProgressReconciled, log)

	rec, err := p.proofs.Upsert(ctx, proofRecord(&job.Payload, cp))
	if err != nil {
		return nil, fmt.Errorf("persist proof record: %w", err)
	}
	p.progress(ctx, reporter, ProgressPersisted, log)

	return &models.Result{
		ProofRecordID:       rec.ID,
		AssetIdentifier:     cp.AssetIdentifier,
		CandidateIdentifier: cp.CandidateIdentifier,
		MetadataURI:         cp.MetadataURI,
		TxSignature:         cp.TxSignature,
	}, nil
}

func (p *Processor) predictPublishMint(ctx context.Context, job *models.Job, reporter worker.Reporter, log zerolog.Logger) (*models.Checkpoint, error) {
	payload := &job.Payload
	tree := p.ledger.TreeAddress()

	// PREDICT
	counter, err := p.ledger.FetchCounter(ctx, tree)
	if err != nil {
		return nil, classify(fmt.Errorf("fetch counter: %w", err))
	}
	candidate, err := p.ledger.DeriveIdentifier(tree, counter)
	if err != nil {
		return nil, classify(fmt.Errorf("derive candidate: %w", err))
	}
	p.progress(ctx, reporter, ProgressPredicted, log)

	// PUBLISH
	uri, err := p.publisher.Publish(ctx, metadata.Input{
		Title:               payload.Title,
		Description:         payload.Description,
		ContentHash:         payload.OriginalHash,
		Signer:              payload.RootSigner,
		CertChain:           payload.RootCertChain,
		CandidateIdentifier: candidate,
		ThumbnailURI:        payload.ThumbnailURI,
		NotarizedAt:         p.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("publish metadata: %w", err)
	}
	p.progress(ctx, reporter, ProgressPublished, log)

	// MINT
	res, err := p.ledger.Mint(ctx, payload.UserWallet, uri)
	if err != nil {
		if res.TxSignature != "" {
			// retrying may mint a second asset for this upload
			log.Warn().Err(err).Str("tx", res.TxSignature).Msg("Mint sent but confirmation failed")
		}
		return nil, classify(fmt.Errorf("mint: %w", err))
	}
	if res.PostCounter == 0 {
		return nil, worker.Permanent(errors.New("ledger reported post-mint counter 0"))
	}
	actual, err := p.ledger.DeriveIdentifier(tree, res.PostCounter-1)
	if err != nil {
		return nil, classify(fmt.Errorf("derive actual identifier: %w", err))
	}

	cp := &models.Checkpoint{
		MetadataURI:         uri,
		CandidateIdentifier: candidate,
		AssetIdentifier:     actual,
		TxSignature:         res.TxSignature,
	}
	if err := reporter.Checkpoint(ctx, cp); err != nil {
		log.Error().Err(err).Str("tx", res.TxSignature).Msg("Failed to checkpoint mint result")
	}
	p.progress(ctx, reporter, ProgressMinted, log)

	return cp, nil
}

func (p *Processor) reconcile(cp *models.Checkpoint, log zerolog.Logger) {
	if cp.CandidateIdentifier == cp.AssetIdentifier {
		return
	}
	log.Warn().
		Str("candidate", cp.CandidateIdentifier).
		Str("actual", cp.AssetIdentifier).
		Msg("Predicted identifier differs from minted one, keeping minted")
}

func (p *Processor) progress(ctx context.Context, reporter worker.Reporter, percent int, log zerolog.Logger) {
	if err := reporter.Progress(ctx, percent); err != nil {
		log.Warn().Err(err).Int("progress", percent).Msg("Failed to report progress")
	}
}

func proofRecord(payload *models.Payload, cp *models.Checkpoint) *proofmodels.ProofRecord {
	return &proofmodels.ProofRecord{
		ID:                 payload.ProofRecordID,
		OriginalHash:       payload.OriginalHash,
		DurableMetadataURI: cp.MetadataURI,
		AssetIdentifier:    cp.AssetIdentifier,
		OwnerWallet:        payload.UserWallet,
		FileExtension:      payload.FileExtension(),
		PriceLamports:      payload.Price,
		Title:              payload.Title,
		Description:        payload.Description,
		IsPublic:           true,
	}
}

func classify(err error) error {
	if ledger.IsFatal(err) {
		return worker.Permanent(err)
	}
	return err
}
