package models

import "time"

// Purchase is a verified payment claim and the download grant it carries.
// TxSignature is unique; DownloadCount never exceeds the configured maximum.
type Purchase struct {
	ID                string    `json:"id"`
	ProofRecordID     string    `json:"proofRecordId"`
	BuyerWallet       string    `json:"buyerWallet"`
	SellerWallet      string    `json:"sellerWallet"`
	TxSignature       string    `json:"txSignature"`
	AmountLamports    int64     `json:"amountLamports"`
	DownloadToken     string    `json:"-"`
	DownloadExpiresAt time.Time `json:"downloadExpiresAt"`
	DownloadCount     int       `json:"downloadCount"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Expired reports whether now is past the download window.
func (p *Purchase) Expired(now time.Time) bool {
	return now.After(p.DownloadExpiresAt)
}

// Redeemable reports whether the token would still be accepted at now.
func (p *Purchase) Redeemable(now time.Time, maxDownloads int) bool {
	return !p.Expired(now) && p.DownloadCount < maxDownloads
}

// PurchaseRequest is a client's claim that it paid for a proof record.
type PurchaseRequest struct {
	ProofRecordID string `json:"proofRecordId" example:"7d7c2a8e-6f0e-4f57-9d5e-0b8d6f3b1a11"`
	BuyerWallet   string `json:"buyerWallet" example:"0:5f3e..."`
	TxSignature   string `json:"txSignature" example:"free_1718000000"`
}

type PurchaseResponse struct {
	Success       bool   `json:"success"`
	PurchaseID    string `json:"purchaseId"`
	DownloadToken string `json:"downloadToken"`
}

type PurchaseCheckResponse struct {
	Purchased     bool   `json:"purchased"`
	DownloadToken string `json:"downloadToken,omitempty"`
}
