// Package billing owns invoices, their installment schedules and the
// allocation of verified payments against them.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus enumerates installment payment states.
type InstallmentStatus string

const (
	InstallmentPending     InstallmentStatus = "pending"
	InstallmentPartialPaid InstallmentStatus = "partial_paid"
	InstallmentPaid        InstallmentStatus = "paid"
)

// Invoice is created exactly once, atomically with its installments, when a
// quotation is accepted. Immutable afterwards except for derived aggregates.
type Invoice struct {
	ID          int64           `json:"id"`
	Number      string          `json:"invoice_number"`
	QuotationID int64           `json:"quotation_id"`
	RequestID   int64           `json:"request_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Installment is one scheduled portion of an invoice's total. Mutated only
// by the allocation engine.
type Installment struct {
	ID            int64             `json:"id"`
	InvoiceID     int64             `json:"invoice_id"`
	SequenceIndex int               `json:"sequence_index"`
	Description   string            `json:"description"`
	Amount        decimal.Decimal   `json:"amount"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	Status        InstallmentStatus `json:"status"`
	DueDate       time.Time         `json:"due_date"`
}

// Outstanding returns the unpaid remainder of the installment.
func (i Installment) Outstanding() decimal.Decimal {
	return i.Amount.Sub(i.PaidAmount)
}

// DeriveStatus is the single source of truth for installment status.
func DeriveStatus(paid, amount decimal.Decimal) InstallmentStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return InstallmentPending
	case paid.LessThan(amount):
		return InstallmentPartialPaid
	default:
		return InstallmentPaid
	}
}

// InvoiceDraft is the input for invoice generation.
type InvoiceDraft struct {
	QuotationID int64
	RequestID   int64
	TotalAmount decimal.Decimal
}

// InstallmentDraft is an installment row awaiting persistence.
type InstallmentDraft struct {
	SequenceIndex int
	Description   string
	Amount        decimal.Decimal
	DueDate       time.Time
}

// Allocation records how much of a payment was applied to an installment.
// Append-only; reversal requires a compensating entry, never a delete.
type Allocation struct {
	ID            int64           `json:"id"`
	PaymentID     int64           `json:"payment_id"`
	InstallmentID int64           `json:"breakup_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
}

// AllocationDraft is an allocation row awaiting persistence, paired with
// the installment state after applying it.
type AllocationDraft struct {
	InstallmentID int64
	Amount        decimal.Decimal
	NewPaid       decimal.Decimal
	NewStatus     InstallmentStatus
}

// OutstandingInstallment joins an unpaid installment with its parent
// identifiers for grouped overdue reporting.
type OutstandingInstallment struct {
	Installment
	InvoiceNumber string          `json:"invoice_number"`
	RequestID     int64           `json:"request_id"`
	InvoiceTotal  decimal.Decimal `json:"invoice_total"`
}

// InvoiceWithInstallments bundles an invoice with its schedule for reads.
type InvoiceWithInstallments struct {
	Invoice
	Installments []Installment   `json:"installments"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Balance      decimal.Decimal `json:"balance"`
}
