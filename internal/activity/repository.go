package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed timeline repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, e Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO activities (request_id, actor_id, actor_role, action, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.RequestID, e.ActorID, e.ActorRole, e.Action, e.Notes, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("activity: insert: %w", err)
	}
	return nil
}

func (r *repository) ListByRequest(ctx context.Context, requestID int64, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, actor_id, actor_role, action, notes, created_at
		FROM activities
		WHERE request_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, requestID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity: list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ActorID, &e.ActorRole, &e.Action, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
