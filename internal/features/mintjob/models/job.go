package models

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-notary-backend/internal/common/validation"
)

// JobState is the lifecycle position of a mint job.
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateDelayed   JobState = "delayed" // waiting for its retry backoff to elapse
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// PayloadVersion is the only payload schema accepted by Enqueue.
const PayloadVersion = 1

// Payload is the versioned mint job input produced by the upload pipeline.
type Payload struct {
	V             int    `json:"v"`
	UserWallet    string `json:"userWallet"`
	OriginalHash  string `json:"originalHash"`
	RootSigner    string `json:"rootSigner"`
	RootCertChain string `json:"rootCertChain"`
	MediaFilePath string `json:"mediaFilePath"`
	ThumbnailURI  string `json:"thumbnailUri,omitempty"`
	Price         int64  `json:"price"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	ProofRecordID string `json:"proofRecordId,omitempty"`
}

// Validate reports every malformed field at once.
func (p *Payload) Validate() error {
	var errs []error
	if p.V != PayloadVersion {
		errs = append(errs, fmt.Errorf("unsupported payload version %d", p.V))
	}
	if err := validation.ValidateWalletAddress(p.UserWallet); err != nil {
		errs = append(errs, fmt.Errorf("userWallet: %w", err))
	}
	if err := validation.ValidateContentHash(p.OriginalHash); err != nil {
		errs = append(errs, fmt.Errorf("originalHash: %w", err))
	}
	if strings.TrimSpace(p.RootSigner) == "" {
		errs = append(errs, errors.New("rootSigner: cannot be empty"))
	}
	if strings.TrimSpace(p.RootCertChain) == "" {
		errs = append(errs, errors.New("rootCertChain: cannot be empty"))
	}
	if err := validation.ValidateMediaPath(p.MediaFilePath); err != nil {
		errs = append(errs, fmt.Errorf("mediaFilePath: %w", err))
	}
	if err := validation.ValidateNonNegativeInt(p.Price, "price"); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidateTitle(p.Title); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidateDescription(p.Description); err != nil {
		errs = append(errs, err)
	}
	if p.ProofRecordID != "" {
		if _, err := uuid.Parse(p.ProofRecordID); err != nil {
			errs = append(errs, fmt.Errorf("proofRecordId: must be a UUID: %w", err))
		}
	}
	return errors.Join(errs...)
}

// FileExtension is the lowercased extension of the uploaded media, without the dot.
func (p *Payload) FileExtension() string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p.MediaFilePath)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}

// Checkpoint records what MINT produced so a retry does not mint again.
type Checkpoint struct {
	MetadataURI         string `json:"metadataUri"`
	CandidateIdentifier string `json:"candidateIdentifier"`
	AssetIdentifier     string `json:"assetIdentifier"`
	TxSignature         string `json:"txSignature"`
}

// Result is stored on a completed job.
type Result struct {
	ProofRecordID       string `json:"proofRecordId"`
	AssetIdentifier     string `json:"assetIdentifier"`
	CandidateIdentifier string `json:"candidateIdentifier"`
	MetadataURI         string `json:"metadataUri"`
	TxSignature         string `json:"txSignature"`
}

type Job struct {
	ID           string
	Payload      Payload
	State        JobState
	Progress     int
	AttemptsMade int
	Result       *Result
	FailedReason string
	Checkpoint   *Checkpoint
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   time.Time
}

// JobStatus is the polling view of a job.
type JobStatus struct {
	JobID        string   `json:"jobId"`
	State        JobState `json:"state"`
	Progress     int      `json:"progress"`
	AttemptsMade int      `json:"attemptsMade"`
	Result       *Result  `json:"result,omitempty"`
	FailedReason string   `json:"failedReason,omitempty"`
}

func (j *Job) Status() *JobStatus {
	return &JobStatus{
		JobID:        j.ID,
		State:        j.State,
		Progress:     j.Progress,
		AttemptsMade: j.AttemptsMade,
		Result:       j.Result,
		FailedReason: j.FailedReason,
	}
}

// EnqueueResponse is returned by the enqueue endpoint.
type EnqueueResponse struct {
	JobID string `json:"jobId"`
}
