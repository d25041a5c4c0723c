package quotations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/platform/db"
	"github.com/voyagecrm/voyagecrm/internal/pricing"
	"github.com/voyagecrm/voyagecrm/internal/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db      dbtx
	pool    *pgxpool.Pool
	billing *billing.Repository
}

// NewRepository constructs the PostgreSQL backed quotation repository.
// It carries the billing repository because Accept writes both aggregates
// in one transaction.
func NewRepository(pool *pgxpool.Pool, billingRepo *billing.Repository) Repository {
	return &repository{db: pool, pool: pool, billing: billingRepo}
}

func (r *repository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO quotations (
				request_id, status, discount, tcs_percent, traveler_count, advance_percent,
				selected_categories, detailed_data,
				subtotal, taxes, tcs, total, per_person, deposit_due,
				created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
			RETURNING id`,
			q.RequestID, StatusDraft, q.Discount, q.TCSPercent, q.TravelerCount, q.AdvancePercent,
			q.SelectedCategories, q.Details,
			q.Pricing.Subtotal, q.Pricing.Taxes, q.Pricing.TCS, q.Pricing.Total, q.Pricing.PerPerson, q.Pricing.DepositDue,
			q.CreatedBy,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("quotations: insert: %w", err)
		}
		return insertLines(ctx, tx, id, q.Lines)
	})
	return id, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx, selectQuotation+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("quotations: get: %w", err)
	}

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return q, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.RequestID > 0 {
		args = append(args, filter.RequestID)
		where += fmt.Sprintf(" AND request_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("quotations: count: %w", err)
	}

	p := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, p.PerPage, p.Offset())
	query := selectQuotation + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("quotations: list: %w", err)
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("quotations: scan: %w", err)
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

func (r *repository) UpdateDraft(ctx context.Context, q Quotation) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotations SET
				discount = $2, tcs_percent = $3, traveler_count = $4, advance_percent = $5,
				selected_categories = $6, detailed_data = $7,
				subtotal = $8, taxes = $9, tcs = $10, total = $11, per_person = $12, deposit_due = $13,
				updated_at = NOW()
			WHERE id = $1 AND status = $14`,
			q.ID,
			q.Discount, q.TCSPercent, q.TravelerCount, q.AdvancePercent,
			q.SelectedCategories, q.Details,
			q.Pricing.Subtotal, q.Pricing.Taxes, q.Pricing.TCS, q.Pricing.Total, q.Pricing.PerPerson, q.Pricing.DepositDue,
			StatusDraft,
		)
		if err != nil {
			return fmt.Errorf("quotations: update draft: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrInvalidTransition
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, q.ID); err != nil {
			return fmt.Errorf("quotations: delete lines: %w", err)
		}
		return insertLines(ctx, tx, q.ID, q.Lines)
	})
}

func (r *repository) Publish(ctx context.Context, id int64, expiry, publishedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations
		SET status = $2, expiry_date = $3, published_at = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`,
		id, StatusSent, expiry, publishedAt, StatusDraft)
	if err != nil {
		return fmt.Errorf("quotations: publish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

func (r *repository) Reject(ctx context.Context, id int64, at time.Time) error {
	return r.flipFromSent(ctx, id, StatusRejected, at)
}

func (r *repository) MarkExpired(ctx context.Context, id int64, at time.Time) error {
	return r.flipFromSent(ctx, id, StatusExpired, at)
}

func (r *repository) flipFromSent(ctx context.Context, id int64, to Status, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, to, at, StatusSent)
	if err != nil {
		return fmt.Errorf("quotations: set %s: %w", to, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

func (r *repository) Accept(ctx context.Context, id int64, at time.Time, draft billing.InvoiceDraft, number string, installments []billing.InstallmentDraft) (*billing.Invoice, error) {
	var invoice *billing.Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotations SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
			id, StatusAccepted, at, StatusSent)
		if err != nil {
			return fmt.Errorf("quotations: accept: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrInvalidTransition
		}

		if _, err := tx.Exec(ctx, `
			UPDATE requests SET status = 'ACCEPTED', updated_at = $2 WHERE id = $1`,
			draft.RequestID, at); err != nil {
			return fmt.Errorf("quotations: mark request accepted: %w", err)
		}

		invoice, err = r.billing.InsertInvoiceTx(ctx, tx, draft, number, at)
		if err != nil {
			return err
		}
		_, err = r.billing.InsertInstallmentsTx(ctx, tx, invoice.ID, installments)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *repository) ListLapsedSent(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM quotations WHERE status = $1 AND expiry_date IS NOT NULL AND expiry_date <= $2`,
		StatusSent, now)
	if err != nil {
		return nil, fmt.Errorf("quotations: list lapsed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const selectQuotation = `
	SELECT id, request_id, status, discount, tcs_percent, traveler_count, advance_percent,
		selected_categories, detailed_data,
		subtotal, taxes, tcs, total, per_person, deposit_due,
		expiry_date, published_at, created_by, created_at, updated_at
	FROM quotations`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	var expiry, published pgtype.Timestamptz
	var details pgtype.Text
	err := row.Scan(
		&q.ID, &q.RequestID, &q.Status, &q.Discount, &q.TCSPercent, &q.TravelerCount, &q.AdvancePercent,
		&q.SelectedCategories, &details,
		&q.Pricing.Subtotal, &q.Pricing.Taxes, &q.Pricing.TCS, &q.Pricing.Total, &q.Pricing.PerPerson, &q.Pricing.DepositDue,
		&expiry, &published, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.Pricing.Discount = q.Discount
	if details.Valid {
		q.Details = details.String
	}
	if expiry.Valid {
		q.ExpiryDate = &expiry.Time
	}
	if published.Valid {
		q.PublishedAt = &published.Time
	}
	return &q, nil
}

func (r *repository) listLines(ctx context.Context, quotationID int64) ([]pricing.Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, supplier, service_date, quantity, unit_cost
		FROM quotation_lines
		WHERE quotation_id = $1
		ORDER BY id`, quotationID)
	if err != nil {
		return nil, fmt.Errorf("quotations: list lines: %w", err)
	}
	defer rows.Close()

	var out []pricing.Line
	for rows.Next() {
		var l pricing.Line
		if err := rows.Scan(&l.ID, &l.Name, &l.Supplier, &l.Date, &l.Quantity, &l.UnitCost); err != nil {
			return nil, fmt.Errorf("quotations: scan line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func insertLines(ctx context.Context, tx pgx.Tx, quotationID int64, lines []pricing.Line) error {
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO quotation_lines (quotation_id, name, supplier, service_date, quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			quotationID, l.Name, l.Supplier, l.Date, l.Quantity, l.UnitCost); err != nil {
			return fmt.Errorf("quotations: insert line: %w", err)
		}
	}
	return nil
}
