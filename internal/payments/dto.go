package payments

import "github.com/shopspring/decimal"

type SubmitPaymentRequest struct {
	InvoiceID     int64           `json:"invoice_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Method        string          `json:"method" validate:"required,oneof=bank_transfer upi card cash"`
	Kind          Kind            `json:"type" validate:"required,oneof=partial_payment full_payment"`
	ProofImageURL string          `json:"proof_image_url" validate:"omitempty,url"`
}

// ListFilter narrows and pages payment listings.
type ListFilter struct {
	InvoiceID int64
	Status    Status
	Page      int
	PerPage   int
}

type VerifyRequest struct {
	Notes string `json:"notes"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"required"`
}
