package requests

import (
	"context"
	"fmt"
	"time"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// Repository defines data access for travel requests.
type Repository interface {
	Create(ctx context.Context, req TravelRequest) (int64, error)
	Get(ctx context.Context, id int64) (*TravelRequest, error)
	List(ctx context.Context, filter ListFilter) ([]TravelRequest, int, error)
	// Update persists mutable fields, guarded so frozen requests stay frozen.
	Update(ctx context.Context, req *TravelRequest) error
	// SetStatus flips from→to with a status predicate.
	SetStatus(ctx context.Context, id int64, from []Status, to Status, at time.Time) error
	Assign(ctx context.Context, id int64, assigneeID int64, at time.Time) error
}

// ActivityRecorder appends to the request timeline. Optional.
type ActivityRecorder interface {
	RecordEvent(ctx context.Context, requestID int64, actor shared.Actor, action, notes string) error
}

// Clock abstracts time.
type Clock func() time.Time

// Service handles travel request lifecycle.
type Service struct {
	repo     Repository
	activity ActivityRecorder
	now      Clock
}

// NewService builds Service instance.
func NewService(repo Repository, activity ActivityRecorder, now Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, activity: activity, now: now}
}

// Create opens a new travel request. Customers create their own; staff may
// create on behalf of a customer.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in CreateRequest) (*TravelRequest, error) {
	customerID := actor.ID
	if actor.IsStaff() {
		if in.CustomerID <= 0 {
			return nil, fmt.Errorf("%w: staff-created requests need a customer", shared.ErrInvalidArgument)
		}
		customerID = in.CustomerID
	}

	now := s.now()
	req := TravelRequest{
		CustomerID:  customerID,
		Title:       in.Title,
		Categories:  in.Categories,
		BudgetMin:   in.BudgetMin,
		BudgetMax:   in.BudgetMax,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		PeopleCount: in.PeopleCount,
		Status:      StatusNew,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	id, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.ID = id
	s.record(ctx, id, actor, "request_created", in.Title)
	return &req, nil
}

// Get returns one request. Customers only see their own.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*TravelRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && req.CustomerID != actor.ID {
		return nil, shared.ErrNotFound
	}
	return req, nil
}

// List returns one page of requests matching the filter. Customer callers
// are pinned to their own requests regardless of the filter.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]TravelRequest, shared.Pagination, error) {
	if !actor.IsStaff() {
		filter.CustomerID = actor.ID
	}
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update modifies a request that has not been accepted or cancelled.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, in UpdateRequest) (*TravelRequest, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.Editable() {
		return nil, fmt.Errorf("%w: request is %s", shared.ErrInvalidTransition, req.Status)
	}

	if in.Title != nil {
		req.Title = *in.Title
	}
	if in.Categories != nil {
		req.Categories = *in.Categories
	}
	if in.BudgetMin != nil {
		req.BudgetMin = *in.BudgetMin
	}
	if in.BudgetMax != nil {
		req.BudgetMax = *in.BudgetMax
	}
	if in.StartDate != nil {
		req.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		req.EndDate = in.EndDate
	}
	if in.PeopleCount != nil {
		req.PeopleCount = *in.PeopleCount
	}
	if in.Notes != nil {
		req.Notes = *in.Notes
	}
	req.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	return req, nil
}

// Assign hands the request to a salesperson and moves it in progress.
func (s *Service) Assign(ctx context.Context, actor shared.Actor, id int64, assigneeID int64) (*TravelRequest, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff assign requests", shared.ErrUnauthorized)
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.Editable() {
		return nil, fmt.Errorf("%w: request is %s", shared.ErrInvalidTransition, req.Status)
	}

	if err := s.repo.Assign(ctx, id, assigneeID, s.now()); err != nil {
		return nil, fmt.Errorf("assign request: %w", err)
	}
	s.record(ctx, id, actor, "request_assigned", "")
	return s.repo.Get(ctx, id)
}

// Cancel closes the request. The one mutation still allowed after a
// quotation has been accepted.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, id int64, reason string) (*TravelRequest, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: already cancelled", shared.ErrInvalidTransition)
	}

	from := []Status{StatusNew, StatusInProgress, StatusAccepted}
	if err := s.repo.SetStatus(ctx, id, from, StatusCancelled, s.now()); err != nil {
		return nil, fmt.Errorf("cancel request: %w", err)
	}
	s.record(ctx, id, actor, "request_cancelled", reason)
	return s.repo.Get(ctx, id)
}

func (s *Service) record(ctx context.Context, requestID int64, actor shared.Actor, action, notes string) {
	if s.activity == nil {
		return
	}
	_ = s.activity.RecordEvent(ctx, requestID, actor, action, notes)
}
