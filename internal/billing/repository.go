package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for billing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertInvoiceTx creates the invoice row inside the caller's transaction.
// Invoices are only ever created together with their installments, so there
// is no non-transactional variant.
func (r *Repository) InsertInvoiceTx(ctx context.Context, tx pgx.Tx, draft InvoiceDraft, number string, now time.Time) (*Invoice, error) {
	query := `
		INSERT INTO invoices (invoice_number, quotation_id, request_id, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	inv := Invoice{
		Number:      number,
		QuotationID: draft.QuotationID,
		RequestID:   draft.RequestID,
		TotalAmount: draft.TotalAmount,
		CreatedAt:   now,
	}
	if err := tx.QueryRow(ctx, query, number, draft.QuotationID, draft.RequestID, draft.TotalAmount, now).Scan(&inv.ID); err != nil {
		return nil, fmt.Errorf("billing: insert invoice: %w", err)
	}
	return &inv, nil
}

// InsertInstallmentsTx creates the installment rows inside the caller's
// transaction, preserving draft order as sequence_index.
func (r *Repository) InsertInstallmentsTx(ctx context.Context, tx pgx.Tx, invoiceID int64, drafts []InstallmentDraft) ([]Installment, error) {
	query := `
		INSERT INTO installments (invoice_id, sequence_index, description, amount, paid_amount, status, due_date)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id`

	out := make([]Installment, 0, len(drafts))
	for _, d := range drafts {
		inst := Installment{
			InvoiceID:     invoiceID,
			SequenceIndex: d.SequenceIndex,
			Description:   d.Description,
			Amount:        d.Amount,
			PaidAmount:    decimal.Zero,
			Status:        InstallmentPending,
			DueDate:       d.DueDate,
		}
		if err := tx.QueryRow(ctx, query, invoiceID, d.SequenceIndex, d.Description, d.Amount, InstallmentPending, d.DueDate).Scan(&inst.ID); err != nil {
			return nil, fmt.Errorf("billing: insert installment %d: %w", d.SequenceIndex, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

// GetInvoice retrieves an invoice by ID.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := `
		SELECT id, invoice_number, quotation_id, request_id, total_amount, created_at
		FROM invoices
		WHERE id = $1`

	var inv Invoice
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.Number, &inv.QuotationID, &inv.RequestID, &inv.TotalAmount, &inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("billing: get invoice: %w", err)
	}
	return &inv, nil
}

// ListInvoicesByRequest returns invoices for a travel request.
func (r *Repository) ListInvoicesByRequest(ctx context.Context, requestID int64) ([]Invoice, error) {
	query := `
		SELECT id, invoice_number, quotation_id, request_id, total_amount, created_at
		FROM invoices
		WHERE request_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("billing: list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.QuotationID, &inv.RequestID, &inv.TotalAmount, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("billing: scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListInstallments returns an invoice's installments ordered by sequence.
func (r *Repository) ListInstallments(ctx context.Context, invoiceID int64) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, sequence_index, description, amount, paid_amount, status, due_date
		FROM installments
		WHERE invoice_id = $1
		ORDER BY sequence_index`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("billing: list installments: %w", err)
	}
	defer rows.Close()
	return scanInstallments(rows)
}

// ListInstallmentsTx is ListInstallments inside a transaction, with the
// rows locked for the duration. The allocation engine uses it so concurrent
// verifications serialize at the database as well as at the redis lock.
func (r *Repository) ListInstallmentsTx(ctx context.Context, tx pgx.Tx, invoiceID int64) ([]Installment, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, invoice_id, sequence_index, description, amount, paid_amount, status, due_date
		FROM installments
		WHERE invoice_id = $1
		ORDER BY sequence_index
		FOR UPDATE`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("billing: list installments for update: %w", err)
	}
	defer rows.Close()
	return scanInstallments(rows)
}

// ListOutstandingInstallments returns unpaid installments across all
// invoices, joined with their parent identifiers for grouped reporting.
func (r *Repository) ListOutstandingInstallments(ctx context.Context) ([]OutstandingInstallment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.invoice_id, i.sequence_index, i.description, i.amount, i.paid_amount, i.status, i.due_date,
			inv.invoice_number, inv.request_id, inv.total_amount
		FROM installments i
		JOIN invoices inv ON inv.id = i.invoice_id
		WHERE i.status <> $1
		ORDER BY inv.request_id, i.invoice_id, i.sequence_index`, InstallmentPaid)
	if err != nil {
		return nil, fmt.Errorf("billing: list outstanding: %w", err)
	}
	defer rows.Close()

	var out []OutstandingInstallment
	for rows.Next() {
		var o OutstandingInstallment
		if err := rows.Scan(
			&o.ID, &o.InvoiceID, &o.SequenceIndex, &o.Description, &o.Amount, &o.PaidAmount, &o.Status, &o.DueDate,
			&o.InvoiceNumber, &o.RequestID, &o.InvoiceTotal,
		); err != nil {
			return nil, fmt.Errorf("billing: scan outstanding: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertAllocationTx writes one allocation row. Allocations are append-only.
func (r *Repository) InsertAllocationTx(ctx context.Context, tx pgx.Tx, paymentID int64, draft AllocationDraft, at time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payment_allocations (payment_id, breakup_id, amount, allocated_at)
		VALUES ($1, $2, $3, $4)`, paymentID, draft.InstallmentID, draft.Amount, at)
	if err != nil {
		return fmt.Errorf("billing: insert allocation: %w", err)
	}
	return nil
}

// UpdateInstallmentTx applies the post-allocation paid amount and status.
func (r *Repository) UpdateInstallmentTx(ctx context.Context, tx pgx.Tx, draft AllocationDraft) error {
	tag, err := tx.Exec(ctx, `
		UPDATE installments SET paid_amount = $2, status = $3 WHERE id = $1`,
		draft.InstallmentID, draft.NewPaid, draft.NewStatus)
	if err != nil {
		return fmt.Errorf("billing: update installment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListAllocationsByPayment returns the allocation rows for a payment.
func (r *Repository) ListAllocationsByPayment(ctx context.Context, paymentID int64) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payment_id, breakup_id, amount, allocated_at
		FROM payment_allocations
		WHERE payment_id = $1
		ORDER BY id`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("billing: list allocations: %w", err)
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.InstallmentID, &a.Amount, &a.Date); err != nil {
			return nil, fmt.Errorf("billing: scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanInstallments(rows pgx.Rows) ([]Installment, error) {
	var out []Installment
	for rows.Next() {
		var inst Installment
		if err := rows.Scan(
			&inst.ID, &inst.InvoiceID, &inst.SequenceIndex, &inst.Description,
			&inst.Amount, &inst.PaidAmount, &inst.Status, &inst.DueDate,
		); err != nil {
			return nil, fmt.Errorf("billing: scan installment: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}
