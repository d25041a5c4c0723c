// Package activity keeps the append-only event timeline of a travel
// request. Every lifecycle transition across the system records here so
// staff can reconstruct what happened and when.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// Event is one timeline entry. Never updated or deleted.
type Event struct {
	ID        int64       `json:"id"`
	RequestID int64       `json:"request_id"`
	ActorID   int64       `json:"actor_id"`
	ActorRole shared.Role `json:"actor_role"`
	Action    string      `json:"action"`
	Notes     string      `json:"notes,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Repository defines timeline persistence.
type Repository interface {
	Insert(ctx context.Context, e Event) error
	ListByRequest(ctx context.Context, requestID int64, limit int) ([]Event, error)
}

// Clock abstracts time.
type Clock func() time.Time

// Service records and lists timeline events.
type Service struct {
	repo Repository
	now  Clock
}

// NewService builds Service instance.
func NewService(repo Repository, now Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// RecordEvent appends one entry. Callers treat failures as advisory, so
// the error is informational only.
func (s *Service) RecordEvent(ctx context.Context, requestID int64, actor shared.Actor, action, notes string) error {
	e := Event{
		RequestID: requestID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		Notes:     notes,
		CreatedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Timeline returns a request's events, newest first.
func (s *Service) Timeline(ctx context.Context, requestID int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByRequest(ctx, requestID, limit)
}
