package quotations

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/pricing"
	"github.com/voyagecrm/voyagecrm/internal/shared"
)

type memoryRepo struct {
	mu            sync.Mutex
	quotations    map[int64]*Quotation
	invoices      map[int64]*billing.Invoice
	installments  map[int64][]billing.Installment
	requestStatus map[int64]string
	nextID        int64
	nextInvoiceID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotations:    make(map[int64]*Quotation),
		invoices:      make(map[int64]*billing.Invoice),
		installments:  make(map[int64][]billing.Installment),
		requestStatus: make(map[int64]string),
	}
}

func (r *memoryRepo) Create(ctx context.Context, q Quotation) (int64, error) {
	r.nextID++
	q.ID = r.nextID
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	r.quotations[q.ID] = &q
	return q.ID, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *q
	return &clone, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range r.quotations {
		if filter.RequestID > 0 && q.RequestID != filter.RequestID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	total := len(out)
	p := shared.NewPagination(filter.Page, filter.PerPage, total)
	if p.Offset() >= total {
		return nil, total, nil
	}
	end := p.Offset() + p.PerPage
	if end > total {
		end = total
	}
	return out[p.Offset():end], total, nil
}

func (r *memoryRepo) UpdateDraft(ctx context.Context, q Quotation) error {
	existing, ok := r.quotations[q.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if existing.Status != StatusDraft {
		return shared.ErrInvalidTransition
	}
	q.CreatedAt = existing.CreatedAt
	q.UpdatedAt = time.Now()
	r.quotations[q.ID] = &q
	return nil
}

func (r *memoryRepo) Publish(ctx context.Context, id int64, expiry, publishedAt time.Time) error {
	q, ok := r.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	if q.Status != StatusDraft {
		return shared.ErrInvalidTransition
	}
	q.Status = StatusSent
	q.ExpiryDate = &expiry
	q.PublishedAt = &publishedAt
	return nil
}

// the expiry sweep flips concurrently, so the shared map needs a lock
func (r *memoryRepo) flipFromSent(id int64, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	if q.Status != StatusSent {
		return shared.ErrInvalidTransition
	}
	q.Status = to
	return nil
}

func (r *memoryRepo) Reject(ctx context.Context, id int64, at time.Time) error {
	return r.flipFromSent(id, StatusRejected)
}

func (r *memoryRepo) MarkExpired(ctx context.Context, id int64, at time.Time) error {
	return r.flipFromSent(id, StatusExpired)
}

func (r *memoryRepo) Accept(ctx context.Context, id int64, at time.Time, draft billing.InvoiceDraft, number string, installments []billing.InstallmentDraft) (*billing.Invoice, error) {
	if err := r.flipFromSent(id, StatusAccepted); err != nil {
		return nil, err
	}
	r.requestStatus[draft.RequestID] = "ACCEPTED"
	r.nextInvoiceID++
	inv := &billing.Invoice{
		ID:          r.nextInvoiceID,
		Number:      number,
		QuotationID: draft.QuotationID,
		RequestID:   draft.RequestID,
		TotalAmount: draft.TotalAmount,
		CreatedAt:   at,
	}
	r.invoices[inv.ID] = inv
	for _, d := range installments {
		r.installments[inv.ID] = append(r.installments[inv.ID], billing.Installment{
			InvoiceID:     inv.ID,
			SequenceIndex: d.SequenceIndex,
			Description:   d.Description,
			Amount:        d.Amount,
			PaidAmount:    decimal.Zero,
			Status:        billing.InstallmentPending,
			DueDate:       d.DueDate,
		})
	}
	return inv, nil
}

func (r *memoryRepo) ListLapsedSent(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	for _, q := range r.quotations {
		if q.Status == StatusSent && q.ExpiryDate != nil && !q.ExpiryDate.After(now) {
			ids = append(ids, q.ID)
		}
	}
	return ids, nil
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

var (
	ops      = shared.Actor{ID: 1, Role: shared.RoleOperations}
	customer = shared.Actor{ID: 9, Role: shared.RoleCustomer}
)

func draftQuotation(t *testing.T, svc *Service) *Quotation {
	t.Helper()
	q, err := svc.Create(context.Background(), ops, CreateQuotationRequest{
		RequestID:     42,
		TravelerCount: 2,
		Lines: []LineRequest{
			{Name: "Hotel Deluxe", Supplier: "Sea View Resorts", Quantity: decimal.NewFromInt(2), UnitCost: decimal.NewFromInt(5000)},
		},
	})
	require.NoError(t, err)
	return q
}

func TestCreateComputesPricing(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	q := draftQuotation(t, svc)
	require.Equal(t, StatusDraft, q.Status)
	require.True(t, q.Pricing.Subtotal.Equal(decimal.NewFromInt(10000)))
	require.True(t, q.Pricing.Total.Equal(decimal.NewFromInt(11800)))
	require.True(t, q.Pricing.PerPerson.Equal(decimal.NewFromInt(5900)))
	require.True(t, q.AdvancePercent.Equal(decimal.NewFromInt(30)))
}

func TestCreateDefaultsTCSWhenUnset(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	q := draftQuotation(t, svc)
	require.True(t, q.TCSPercent.Equal(pricing.DefaultTCSPercent))
	require.True(t, q.Pricing.TCS.Equal(decimal.NewFromInt(200)))
}

// An explicit 0% is a waiver, not an omission.
func TestCreateHonoursExplicitZeroTCS(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	zero := decimal.Zero
	q, err := svc.Create(context.Background(), ops, CreateQuotationRequest{
		RequestID:     42,
		TravelerCount: 2,
		TCSPercent:    &zero,
		Lines: []LineRequest{
			{Name: "Hotel Deluxe", Quantity: decimal.NewFromInt(2), UnitCost: decimal.NewFromInt(5000)},
		},
	})
	require.NoError(t, err)
	require.True(t, q.TCSPercent.IsZero())
	require.True(t, q.Pricing.TCS.IsZero(), "tcs=%s", q.Pricing.TCS)
}

func TestListPaginates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	for i := 0; i < 3; i++ {
		draftQuotation(t, svc)
	}

	page, pagination, err := svc.List(context.Background(), ListFilter{RequestID: 42, Page: 2, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, int64(2), page[0].ID)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)

	empty, pagination, err := svc.List(context.Background(), ListFilter{RequestID: 42, Page: 9, PerPage: 1})
	require.NoError(t, err)
	require.Empty(t, empty)
	require.Equal(t, 3, pagination.Total)
}

func TestCreateRejectsCustomer(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Create(context.Background(), customer, CreateQuotationRequest{RequestID: 1, TravelerCount: 1})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestCreateRejectsNegativeLine(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Create(context.Background(), ops, CreateQuotationRequest{
		RequestID:     1,
		TravelerCount: 1,
		Lines:         []LineRequest{{Name: "bad", Quantity: decimal.NewFromInt(-1), UnitCost: decimal.NewFromInt(10)}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidLineItem)
}

func TestUpdateRecomputesIdempotently(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	q := draftQuotation(t, svc)

	// update without changing lines keeps totals stable
	updated, err := svc.Update(context.Background(), ops, q.ID, UpdateQuotationRequest{})
	require.NoError(t, err)
	require.True(t, updated.Pricing.Total.Equal(q.Pricing.Total))

	again, err := svc.Update(context.Background(), ops, q.ID, UpdateQuotationRequest{})
	require.NoError(t, err)
	require.Equal(t, updated.Pricing, again.Pricing)
}

func TestPublishTransitions(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := NewService(repo, nil, fixedClock(now))
	q := draftQuotation(t, svc)

	published, err := svc.Publish(context.Background(), ops, q.ID, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Equal(t, StatusSent, published.Status)
	require.NotNil(t, published.ExpiryDate)

	// publishing twice is an illegal edge
	_, err = svc.Publish(context.Background(), ops, q.ID, now.Add(96*time.Hour))
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestPublishRejectsPastExpiry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(newMemoryRepo(), nil, fixedClock(now))
	q := draftQuotation(t, svc)

	_, err := svc.Publish(context.Background(), ops, q.ID, now.Add(-time.Hour))
	require.ErrorIs(t, err, shared.ErrInvalidExpiry)

	_, err = svc.Publish(context.Background(), ops, q.ID, time.Time{})
	require.ErrorIs(t, err, shared.ErrInvalidExpiry)
}

func TestAcceptGeneratesInvoiceAndInstallments(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := NewService(repo, nil, fixedClock(now))
	q := draftQuotation(t, svc)

	_, err := svc.Publish(context.Background(), ops, q.ID, now.Add(72*time.Hour))
	require.NoError(t, err)

	invoice, err := svc.Accept(context.Background(), customer, q.ID, AcceptRequest{})
	require.NoError(t, err)
	require.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(11800)))
	require.Contains(t, invoice.Number, "INV-20260801-")

	installments := repo.installments[invoice.ID]
	require.Len(t, installments, 2)
	require.True(t, installments[0].Amount.Equal(decimal.NewFromInt(3540)))
	require.True(t, installments[1].Amount.Equal(decimal.NewFromInt(8260)))

	accepted, err := svc.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, accepted.Status)
	require.Equal(t, "ACCEPTED", repo.requestStatus[q.RequestID])

	// accepting again is an illegal edge; no second invoice appears
	_, err = svc.Accept(context.Background(), customer, q.ID, AcceptRequest{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Len(t, repo.invoices, 1)
}

func TestAcceptAfterExpiryFlipsToExpired(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	clockTime := start
	svc := NewService(repo, nil, func() time.Time { return clockTime })

	q := draftQuotation(t, svc)
	_, err := svc.Publish(context.Background(), ops, q.ID, start.Add(24*time.Hour))
	require.NoError(t, err)

	clockTime = start.Add(25 * time.Hour)
	_, err = svc.Accept(context.Background(), customer, q.ID, AcceptRequest{})
	require.ErrorIs(t, err, shared.ErrExpired)

	expired, err := svc.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, expired.Status)
	require.Empty(t, repo.invoices)
}

func TestAcceptDoesNotRejectSiblings(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := NewService(repo, nil, fixedClock(now))

	first := draftQuotation(t, svc)
	second := draftQuotation(t, svc)
	_, err := svc.Publish(context.Background(), ops, first.ID, now.Add(72*time.Hour))
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), ops, second.ID, now.Add(72*time.Hour))
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), customer, first.ID, AcceptRequest{})
	require.NoError(t, err)

	sibling, err := svc.Get(context.Background(), second.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sibling.Status)
}

func TestRejectFromSent(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := NewService(repo, nil, fixedClock(now))
	q := draftQuotation(t, svc)

	_, err := svc.Reject(context.Background(), customer, q.ID, "too costly")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = svc.Publish(context.Background(), ops, q.ID, now.Add(time.Hour))
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), customer, q.ID, "too costly")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
}

func TestUpdateFrozenAfterPublish(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := NewService(repo, nil, fixedClock(now))
	q := draftQuotation(t, svc)

	_, err := svc.Publish(context.Background(), ops, q.ID, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), ops, q.ID, UpdateQuotationRequest{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestExpireLapsedSweep(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo()
	svc := NewService(repo, nil, fixedClock(now))

	lapsed := draftQuotation(t, svc)
	fresh := draftQuotation(t, svc)
	_, err := svc.Publish(context.Background(), ops, lapsed.ID, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), ops, fresh.ID, now.Add(72*time.Hour))
	require.NoError(t, err)

	flipped, err := svc.ExpireLapsed(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, []int64{lapsed.ID}, flipped)

	stillSent, err := svc.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, stillSent.Status)
}

func TestTimeRemainingIsDerived(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(30 * time.Minute)
	q := Quotation{Status: StatusSent, ExpiryDate: &expiry}

	require.Equal(t, 30*time.Minute, q.TimeRemaining(now))
	require.True(t, q.Acceptable(now))

	// clock lapsed: still SENT in storage, but no longer acceptable
	later := now.Add(time.Hour)
	require.Equal(t, time.Duration(0), q.TimeRemaining(later))
	require.False(t, q.Acceptable(later))
	require.Equal(t, StatusSent, q.Status)
}
