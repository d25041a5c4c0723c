package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/platform/db"
	"github.com/voyagecrm/voyagecrm/internal/shared"
)

type repository struct {
	pool    *pgxpool.Pool
	billing *billing.Repository
}

// NewRepository constructs the PostgreSQL backed payment repository. It
// carries the billing repository because final verification writes both
// aggregates in one transaction.
func NewRepository(pool *pgxpool.Pool, billingRepo *billing.Repository) Repository {
	return &repository{pool: pool, billing: billingRepo}
}

func (r *repository) Create(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, amount, method, proof_image_url, status, type, submitted_by, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.InvoiceID, p.Amount, p.Method, p.ProofImageURL, p.Status, p.Kind, p.SubmittedBy, p.SubmittedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("payments: insert: %w", err)
	}
	return id, nil
}

const selectPayment = `
	SELECT id, invoice_id, amount, method, proof_image_url, status, type, submitted_by,
		accountant_notes, ops_notes, reject_reason, submitted_at, verified_at
	FROM payments`

func (r *repository) Get(ctx context.Context, id int64) (*Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, selectPayment+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payments: get: %w", err)
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Payment, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.InvoiceID > 0 {
		args = append(args, filter.InvoiceID)
		where += fmt.Sprintf(" AND invoice_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("payments: count: %w", err)
	}

	p := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, p.PerPage, p.Offset())
	query := selectPayment + where +
		fmt.Sprintf(" ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("payments: scan: %w", err)
		}
		out = append(out, *payment)
	}
	return out, total, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time, notes string) error {
	notesColumn := "accountant_notes"
	switch to {
	case StatusRejected:
		notesColumn = "reject_reason"
	case StatusVerifiedByOps:
		notesColumn = "ops_notes"
	}

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE payments SET status = $2, %s = $3, verified_at = $4 WHERE id = $1 AND status = $5`, notesColumn),
		id, to, notes, at, from)
	if err != nil {
		return fmt.Errorf("payments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

// ApplyVerification commits the final verification edge atomically. The
// status predicate doubles as the double-application guard: if another
// worker already flipped the payment, zero rows match and nothing else in
// the transaction survives. Installments are read FOR UPDATE and the
// waterfall computed on those rows, so the new paid amounts are derived
// from the state this transaction actually sees.
func (r *repository) ApplyVerification(ctx context.Context, paymentID, invoiceID int64, amount decimal.Decimal, at time.Time, notes string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payments SET status = $2, ops_notes = $3, verified_at = $4
			WHERE id = $1 AND status = $5`,
			paymentID, StatusVerifiedByOps, notes, at, StatusVerifiedByAccountant)
		if err != nil {
			return fmt.Errorf("payments: final verify: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrInvalidTransition
		}

		installments, err := r.billing.ListInstallmentsTx(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		drafts, leftover := billing.Allocate(amount, installments)
		if leftover.GreaterThan(decimal.Zero) {
			// rolls the status flip back; the payment stays at the
			// accountant-verified stage for manual resolution
			return fmt.Errorf("%w: %s left after all installments", shared.ErrOverpayment, leftover)
		}

		for _, draft := range drafts {
			if err := r.billing.InsertAllocationTx(ctx, tx, paymentID, draft, at); err != nil {
				return err
			}
			if err := r.billing.UpdateInstallmentTx(ctx, tx, draft); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) InvoiceExists(ctx context.Context, invoiceID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, invoiceID).Scan(&exists)
	return exists, err
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var proof, accNotes, opsNotes, reason pgtype.Text
	var verifiedAt pgtype.Timestamptz
	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &proof, &p.Status, &p.Kind, &p.SubmittedBy,
		&accNotes, &opsNotes, &reason, &p.SubmittedAt, &verifiedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ProofImageURL = proof.String
	p.AccountantNotes = accNotes.String
	p.OpsNotes = opsNotes.String
	p.RejectReason = reason.String
	if verifiedAt.Valid {
		p.VerifiedAt = &verifiedAt.Time
	}
	return &p, nil
}
