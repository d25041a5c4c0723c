package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed request repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, req TravelRequest) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO requests (customer_id, title, categories, budget_min, budget_max, start_date, end_date,
			people_count, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id`,
		req.CustomerID, req.Title, req.Categories, req.BudgetMin, req.BudgetMax,
		req.StartDate, req.EndDate, req.PeopleCount, req.Status, req.Notes, req.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("requests: insert: %w", err)
	}
	return id, nil
}

const selectRequest = `
	SELECT id, customer_id, title, categories, budget_min, budget_max, start_date, end_date,
		people_count, status, assigned_to, notes, created_at, updated_at
	FROM requests`

func (r *repository) Get(ctx context.Context, id int64) (*TravelRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, selectRequest+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("requests: get: %w", err)
	}
	return req, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]TravelRequest, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.AssignedTo > 0 {
		args = append(args, filter.AssignedTo)
		where += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("requests: count: %w", err)
	}

	p := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, p.PerPage, p.Offset())
	query := selectRequest + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("requests: list: %w", err)
	}
	defer rows.Close()

	var out []TravelRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("requests: scan: %w", err)
		}
		out = append(out, *req)
	}
	return out, total, rows.Err()
}

func (r *repository) Update(ctx context.Context, req *TravelRequest) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE requests
		SET title = $2, categories = $3, budget_min = $4, budget_max = $5, start_date = $6,
			end_date = $7, people_count = $8, notes = $9, updated_at = $10
		WHERE id = $1 AND status IN ($11, $12)`,
		req.ID, req.Title, req.Categories, req.BudgetMin, req.BudgetMax, req.StartDate,
		req.EndDate, req.PeopleCount, req.Notes, req.UpdatedAt, StatusNew, StatusInProgress)
	if err != nil {
		return fmt.Errorf("requests: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, from []Status, to Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = ANY($4)`,
		id, to, at, from)
	if err != nil {
		return fmt.Errorf("requests: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

func (r *repository) Assign(ctx context.Context, id int64, assigneeID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE requests SET assigned_to = $2, status = $3, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)`,
		id, assigneeID, StatusInProgress, at, StatusNew, StatusInProgress)
	if err != nil {
		return fmt.Errorf("requests: assign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

func scanRequest(row pgx.Row) (*TravelRequest, error) {
	var req TravelRequest
	var start, end pgtype.Timestamptz
	var assigned pgtype.Int8
	var notes pgtype.Text
	err := row.Scan(
		&req.ID, &req.CustomerID, &req.Title, &req.Categories, &req.BudgetMin, &req.BudgetMax,
		&start, &end, &req.PeopleCount, &req.Status, &assigned, &notes, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		req.StartDate = &start.Time
	}
	if end.Valid {
		req.EndDate = &end.Time
	}
	if assigned.Valid {
		req.AssignedTo = &assigned.Int64
	}
	req.Notes = notes.String
	return &req, nil
}
