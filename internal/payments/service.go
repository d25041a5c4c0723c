package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// Repository defines data access for payments.
type Repository interface {
	Create(ctx context.Context, p Payment) (int64, error)
	Get(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, filter ListFilter) ([]Payment, int, error)
	// UpdateStatus flips from→to, guarded by the from predicate so a stale
	// caller cannot replay an edge.
	UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time, notes string) error
	// ApplyVerification is the final verification edge: payment status,
	// the allocation waterfall and installment updates in one transaction.
	// Installments are locked and the waterfall computed inside that
	// transaction so a stale reading can never overwrite a fresher paid
	// amount.
	ApplyVerification(ctx context.Context, paymentID, invoiceID int64, amount decimal.Decimal, at time.Time, notes string) error
	InvoiceExists(ctx context.Context, invoiceID int64) (bool, error)
}

// Locker serializes allocation per invoice.
type Locker interface {
	Acquire(ctx context.Context, invoiceID int64) (func(), error)
}

// ActivityRecorder appends to the request timeline. Optional.
type ActivityRecorder interface {
	RecordEvent(ctx context.Context, requestID int64, actor shared.Actor, action, notes string) error
}

// Notifier publishes payment lifecycle events. Optional.
type Notifier interface {
	PaymentEvent(ctx context.Context, p *Payment, event string) error
}

// Clock abstracts time.
type Clock func() time.Time

// Service handles payment intake, verification and allocation.
type Service struct {
	repo     Repository
	locker   Locker
	notifier Notifier
	now      Clock
}

// NewService builds Service instance.
func NewService(repo Repository, locker Locker, notifier Notifier, now Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, locker: locker, notifier: notifier, now: now}
}

// Submit records a payment claim. The amount is not validated against the
// remaining balance here: overlapping in-flight submissions queue up and
// are resolved in verification order.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, req SubmitPaymentRequest) (*Payment, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount must be positive", shared.ErrInvalidArgument)
	}
	exists, err := s.repo.InvoiceExists(ctx, req.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("check invoice: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, req.InvoiceID)
	}

	p := Payment{
		InvoiceID:     req.InvoiceID,
		Amount:        req.Amount,
		Method:        req.Method,
		Kind:          req.Kind,
		ProofImageURL: req.ProofImageURL,
		Status:        StatusSubmitted,
		SubmittedBy:   actor.ID,
		SubmittedAt:   s.now(),
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, created, "payment_submitted")
	return created, nil
}

// VerifyByAccountant is the first review stage. No allocation happens yet.
func (s *Service) VerifyByAccountant(ctx context.Context, actor shared.Actor, id int64, notes string) (*Payment, error) {
	if actor.Role != shared.RoleAccountant && actor.Role != shared.RoleAdmin {
		return nil, fmt.Errorf("%w: accountant verification requires accountant role", shared.ErrUnauthorized)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if existing.Status != StatusSubmitted {
		return nil, fmt.Errorf("%w: can only verify submitted payments", shared.ErrInvalidTransition)
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusSubmitted, StatusVerifiedByAccountant, s.now(), notes); err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	verified, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, verified, "payment_verified_accountant")
	return verified, nil
}

// VerifyByOps is the final review stage. Reaching VERIFIED_BY_OPS runs the
// allocation waterfall synchronously in the same transition; allocation is
// a side effect of this edge, never a separately invoked operation.
func (s *Service) VerifyByOps(ctx context.Context, actor shared.Actor, id int64, notes string) (*Payment, error) {
	if actor.Role != shared.RoleOperations && actor.Role != shared.RoleAdmin {
		return nil, fmt.Errorf("%w: ops verification requires operations role", shared.ErrUnauthorized)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if existing.Status != StatusVerifiedByAccountant {
		return nil, fmt.Errorf("%w: payment must be accountant-verified first", shared.ErrInvalidTransition)
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, existing.InvoiceID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	if err := s.repo.ApplyVerification(ctx, id, existing.InvoiceID, existing.Amount, s.now(), notes); err != nil {
		return nil, fmt.Errorf("apply verification: %w", err)
	}
	verified, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, verified, "payment_verified_ops")
	return verified, nil
}

// Reject declines a payment before it reaches final verification. The
// amount is never applied; there is no reversal path after allocation.
func (s *Service) Reject(ctx context.Context, actor shared.Actor, id int64, reason string) (*Payment, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff reject payments", shared.ErrUnauthorized)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if existing.Status != StatusSubmitted && existing.Status != StatusVerifiedByAccountant {
		return nil, fmt.Errorf("%w: cannot reject payment in status %s", shared.ErrInvalidTransition, existing.Status)
	}

	if err := s.repo.UpdateStatus(ctx, id, existing.Status, StatusRejected, s.now(), reason); err != nil {
		return nil, fmt.Errorf("reject payment: %w", err)
	}
	rejected, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, rejected, "payment_rejected")
	return rejected, nil
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of payments, optionally filtered by invoice and
// status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Payment, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) notify(ctx context.Context, p *Payment, event string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.PaymentEvent(ctx, p, event)
}
