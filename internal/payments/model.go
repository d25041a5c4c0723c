// Package payments records customer payment claims and advances them
// through the two-stage verification chain. Money becomes visible on
// installments only after both reviewers agree; a verified-but-unallocated
// state does not exist.
package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates payment verification states. Payments only move
// forward: submitted → VERIFIED_BY_ACCOUNTANT → VERIFIED_BY_OPS, or to
// rejected from either review stage.
type Status string

const (
	StatusSubmitted            Status = "submitted"
	StatusVerifiedByAccountant Status = "VERIFIED_BY_ACCOUNTANT"
	StatusVerifiedByOps        Status = "VERIFIED_BY_OPS"
	StatusRejected             Status = "rejected"
)

// Kind distinguishes partial from full payments.
type Kind string

const (
	KindPartial Kind = "partial_payment"
	KindFull    Kind = "full_payment"
)

// Payment is a customer-submitted claim against an invoice.
type Payment struct {
	ID              int64           `json:"id"`
	InvoiceID       int64           `json:"invoice_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	ProofImageURL   string          `json:"proof_image_url,omitempty"`
	Status          Status          `json:"status"`
	Kind            Kind            `json:"type"`
	SubmittedBy     int64           `json:"submitted_by"`
	AccountantNotes string          `json:"accountant_notes,omitempty"`
	OpsNotes        string          `json:"ops_notes,omitempty"`
	RejectReason    string          `json:"reject_reason,omitempty"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
}
