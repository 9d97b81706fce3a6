package models

import "time"

// ProofRecord is the persisted proof of authenticity for one original upload.
// OriginalHash is unique; re-persisting the same hash overwrites the mutable fields.
type ProofRecord struct {
	ID                 string    `json:"id"`
	OriginalHash       string    `json:"originalHash"`
	DurableMetadataURI string    `json:"durableMetadataUri"`
	AssetIdentifier    string    `json:"assetIdentifier"`
	OwnerWallet        string    `json:"ownerWallet"`
	FileExtension      string    `json:"fileExtension"`
	PriceLamports      int64     `json:"priceLamports"`
	Title              string    `json:"title,omitempty"`
	Description        string    `json:"description,omitempty"`
	IsPublic           bool      `json:"isPublic"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (p *ProofRecord) IsFree() bool {
	return p.PriceLamports == 0
}

// PrivateObjectKey locates the original file in the private bucket.
func (p *ProofRecord) PrivateObjectKey() string {
	return "originals/" + p.OriginalHash + "." + p.FileExtension
}

// ProofView is the public projection of a ProofRecord.
type ProofView struct {
	ID                 string    `json:"id"`
	OriginalHash       string    `json:"originalHash"`
	DurableMetadataURI string    `json:"durableMetadataUri"`
	AssetIdentifier    string    `json:"assetIdentifier"`
	OwnerWallet        string    `json:"ownerWallet"`
	PriceLamports      int64     `json:"priceLamports"`
	Title              string    `json:"title,omitempty"`
	Description        string    `json:"description,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (p *ProofRecord) View() *ProofView {
	return &ProofView{
		ID:                 p.ID,
		OriginalHash:       p.OriginalHash,
		DurableMetadataURI: p.DurableMetadataURI,
		AssetIdentifier:    p.AssetIdentifier,
		OwnerWallet:        p.OwnerWallet,
		PriceLamports:      p.PriceLamports,
		Title:              p.Title,
		Description:        p.Description,
		CreatedAt:          p.CreatedAt,
	}
}
