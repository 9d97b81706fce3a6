// Package metadata builds the public proof document for a mint and uploads it
// to immutable storage under a content-addressed key.
package metadata

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Input carries everything the document is built from.
type Input struct {
	Title               string
	Description         string
	ContentHash         string
	Signer              string
	CertChain           string
	CandidateIdentifier string
	ThumbnailURI        string
	ExternalURL         string
	NotarizedAt         time.Time
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type Properties struct {
	ContentHash         string `json:"contentHash"`
	Signer              string `json:"signer"`
	CertChainRef        string `json:"certChainRef"`
	CandidateIdentifier string `json:"candidateIdentifier"`
	NotarizedAt         string `json:"notarizedAt"`
	Category            string `json:"category"`
}

// Document follows the common off-chain NFT metadata layout.
type Document struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image,omitempty"`
	ExternalURL string      `json:"external_url,omitempty"`
	Attributes  []Attribute `json:"attributes"`
	Properties  Properties  `json:"properties"`
}

// CertChainRef is a stable digest reference to a certificate chain.
func CertChainRef(chain string) string {
	sum := sha256.Sum256([]byte(chain))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func BuildDocument(in Input) Document {
	name := strings.TrimSpace(in.Title)
	if name == "" {
		short := in.ContentHash
		if len(short) > 12 {
			short = short[:12]
		}
		name = "Proof of Authenticity " + short
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = "Verified original media notarized on-chain."
	}
	notarizedAt := in.NotarizedAt.UTC().Format(time.RFC3339)

	return Document{
		Name:        name,
		Description: description,
		Image:       in.ThumbnailURI,
		ExternalURL: in.ExternalURL,
		Attributes: []Attribute{
			{TraitType: "Signer", Value: in.Signer},
			{TraitType: "Content Hash", Value: in.ContentHash},
			{TraitType: "Notarized At", Value: notarizedAt},
		},
		Properties: Properties{
			ContentHash:         in.ContentHash,
			Signer:              in.Signer,
			CertChainRef:        CertChainRef(in.CertChain),
			CandidateIdentifier: in.CandidateIdentifier,
			NotarizedAt:         notarizedAt,
			Category:            "media",
		},
	}
}

// Encode serializes doc deterministically: struct field order, no HTML escaping, no trailing newline.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type Uploader interface {
	PutImmutable(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

type Publisher struct {
	store   Uploader
	bucket  string
	baseURL string
}

func NewPublisher(store Uploader, bucket, publicBaseURL string) *Publisher {
	return &Publisher{store: store, bucket: bucket, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Publish uploads the document and returns its permanent URI. Publishing the same
// document twice yields the same URI.
func (p *Publisher) Publish(ctx context.Context, in Input) (string, error) {
	body, err := Encode(BuildDocument(in))
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	sum := sha256.Sum256(body)
	key := "proofs/" + hex.EncodeToString(sum[:]) + ".json"

	if err := p.store.PutImmutable(ctx, p.bucket, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload metadata: %w", err)
	}
	return p.baseURL + "/" + key, nil
}
