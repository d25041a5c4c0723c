package quotations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/pricing"
	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// Repository defines data access for quotations.
type Repository interface {
	Create(ctx context.Context, q Quotation) (int64, error)
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	UpdateDraft(ctx context.Context, q Quotation) error
	Publish(ctx context.Context, id int64, expiry, publishedAt time.Time) error
	Reject(ctx context.Context, id int64, at time.Time) error
	MarkExpired(ctx context.Context, id int64, at time.Time) error
	// Accept flips SENT→ACCEPTED, marks the parent request accepted, and
	// creates the invoice with its installments — one transaction, all or
	// nothing. Implementations must guard the edge with a status predicate
	// so the invoice can only ever be generated once.
	Accept(ctx context.Context, id int64, at time.Time, invoice billing.InvoiceDraft, number string, installments []billing.InstallmentDraft) (*billing.Invoice, error)
	ListLapsedSent(ctx context.Context, now time.Time) ([]int64, error)
}

// ActivityRecorder appends to the request timeline. Optional.
type ActivityRecorder interface {
	RecordEvent(ctx context.Context, requestID int64, actor shared.Actor, action, notes string) error
}

// Clock abstracts time for expiry decisions.
type Clock func() time.Time

// Service handles quotation business logic.
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

func (s *Service) priceOf(lines []LineRequest, q *Quotation) error {
	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		priced = append(priced, pricing.Line{
			Name:     l.Name,
			Supplier: l.Supplier,
			Date:     l.Date,
			Quantity: l.Quantity,
			UnitCost: l.UnitCost,
		})
	}
	summary, err := pricing.Compute(pricing.Input{
		Lines:         priced,
		Discount:      q.Discount,
		TCSPercent:    q.TCSPercent,
		TravelerCount: q.TravelerCount,
	})
	if err != nil {
		return err
	}
	q.Lines = priced
	q.Pricing = summary
	return nil
}

// Create opens a new DRAFT quotation for a request. Staff only.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateQuotationRequest) (*Quotation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff create quotations", shared.ErrUnauthorized)
	}

	q := Quotation{
		RequestID:          req.RequestID,
		Status:             StatusDraft,
		Discount:           req.Discount,
		TCSPercent:         pricing.DefaultTCSPercent,
		TravelerCount:      req.TravelerCount,
		AdvancePercent:     req.AdvancePercent,
		SelectedCategories: req.SelectedCategories,
		Details:            req.Details,
		CreatedBy:          actor.ID,
	}
	// an explicit zero rate is honoured; only an absent field defaults
	if req.TCSPercent != nil {
		q.TCSPercent = *req.TCSPercent
	}
	if q.AdvancePercent.IsZero() {
		q.AdvancePercent = billing.DefaultAdvancePercent
	}
	if err := s.priceOf(req.Lines, &q); err != nil {
		return nil, err
	}

	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	s.record(ctx, q.RequestID, actor, "quotation_created", "")
	return s.repo.Get(ctx, id)
}

// Update replaces draft content and recomputes pricing. Recomputation is a
// pure function of the new line list, so repeated updates cannot drift.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateQuotationRequest) (*Quotation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff update quotations", shared.ErrUnauthorized)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != StatusDraft {
		return nil, fmt.Errorf("%w: only DRAFT quotations can be updated", shared.ErrInvalidTransition)
	}

	if req.Discount != nil {
		existing.Discount = *req.Discount
	}
	if req.TCSPercent != nil {
		existing.TCSPercent = *req.TCSPercent
	}
	if req.TravelerCount != nil {
		existing.TravelerCount = *req.TravelerCount
	}
	if req.AdvancePercent != nil {
		existing.AdvancePercent = *req.AdvancePercent
	}
	if req.SelectedCategories != nil {
		existing.SelectedCategories = *req.SelectedCategories
	}
	if req.Details != nil {
		existing.Details = *req.Details
	}

	lines := req.Lines
	if lines == nil {
		current := make([]LineRequest, 0, len(existing.Lines))
		for _, l := range existing.Lines {
			current = append(current, LineRequest{Name: l.Name, Supplier: l.Supplier, Date: l.Date, Quantity: l.Quantity, UnitCost: l.UnitCost})
		}
		lines = &current
	}
	if err := s.priceOf(*lines, existing); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDraft(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update quotation: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Publish freezes the draft and starts the expiry clock.
func (s *Service) Publish(ctx context.Context, actor shared.Actor, id int64, expiry time.Time) (*Quotation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff publish quotations", shared.ErrUnauthorized)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != StatusDraft {
		return nil, fmt.Errorf("%w: can only publish DRAFT quotations", shared.ErrInvalidTransition)
	}
	now := s.now()
	if expiry.IsZero() || !expiry.After(now) {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidExpiry, expiry)
	}

	if err := s.repo.Publish(ctx, id, expiry, now); err != nil {
		return nil, fmt.Errorf("publish quotation: %w", err)
	}
	s.record(ctx, existing.RequestID, actor, "quotation_published", "")
	return s.repo.Get(ctx, id)
}

// Accept converts the quotation into an invoice with installments. Expiry
// is checked at the moment of the attempted transition; a lapsed SENT
// quotation flips to EXPIRED here, not in a background job.
func (s *Service) Accept(ctx context.Context, actor shared.Actor, id int64, req AcceptRequest) (*billing.Invoice, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != StatusSent {
		return nil, fmt.Errorf("%w: can only accept SENT quotations", shared.ErrInvalidTransition)
	}

	now := s.now()
	if !existing.Acceptable(now) {
		if err := s.repo.MarkExpired(ctx, id, now); err != nil {
			return nil, fmt.Errorf("mark expired: %w", err)
		}
		return nil, fmt.Errorf("%w: expired at %s", shared.ErrExpired, existing.ExpiryDate)
	}

	schedule := billing.Schedule{Count: req.ScheduleCount, DueDates: req.DueDates}
	installments, err := billing.BuildInstallments(existing.Pricing.Total, existing.AdvancePercent, schedule, now)
	if err != nil {
		return nil, fmt.Errorf("build installments: %w", err)
	}

	draft := billing.InvoiceDraft{
		QuotationID: existing.ID,
		RequestID:   existing.RequestID,
		TotalAmount: existing.Pricing.Total,
	}
	invoice, err := s.repo.Accept(ctx, id, now, draft, billing.NewInvoiceNumber(now), installments)
	if err != nil {
		return nil, fmt.Errorf("accept quotation: %w", err)
	}
	s.record(ctx, existing.RequestID, actor, "quotation_accepted", invoice.Number)
	return invoice, nil
}

// Reject declines a SENT quotation.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, id int64, reason string) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if existing.Status != StatusSent {
		return nil, fmt.Errorf("%w: can only reject SENT quotations", shared.ErrInvalidTransition)
	}
	if err := s.repo.Reject(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("reject quotation: %w", err)
	}
	s.record(ctx, existing.RequestID, actor, "quotation_rejected", reason)
	return s.repo.Get(ctx, id)
}

// Get returns one quotation.
func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of quotations, optionally filtered by request and
// status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quotation, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// CostBreakup exposes the raw lines for the invoice composition read. The
// caller applies the visibility policy.
func (s *Service) CostBreakup(ctx context.Context, quotationID int64) ([]pricing.Line, error) {
	q, err := s.repo.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	return q.Lines, nil
}

// ExpireLapsed flips lapsed SENT quotations to EXPIRED. Cosmetic
// bookkeeping for the sweep job; Accept re-checks the clock itself.
func (s *Service) ExpireLapsed(ctx context.Context, now time.Time) ([]int64, error) {
	ids, err := s.repo.ListLapsedSent(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list lapsed: %w", err)
	}

	var (
		mu      sync.Mutex
		flipped []int64
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.repo.MarkExpired(ctx, id, now); err != nil {
				// a concurrent accept or reject beat the sweep; skip
				if errors.Is(err, shared.ErrInvalidTransition) {
					return nil
				}
				return fmt.Errorf("mark expired %d: %w", id, err)
			}
			mu.Lock()
			flipped = append(flipped, id)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return flipped, err
	}
	return flipped, nil
}

func (s *Service) record(ctx context.Context, requestID int64, actor shared.Actor, action, notes string) {
	if s.activity == nil {
		return
	}
	_ = s.activity.RecordEvent(ctx, requestID, actor, action, notes)
}
