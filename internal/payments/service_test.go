package payments

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/shared"
)

type memoryRepo struct {
	payments     map[int64]*Payment
	installments map[int64][]billing.Installment
	allocations  []billing.Allocation
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		payments:     map[int64]*Payment{},
		installments: map[int64][]billing.Installment{},
		nextID:       1,
	}
}

func (m *memoryRepo) Create(_ context.Context, p Payment) (int64, error) {
	p.ID = m.nextID
	m.nextID++
	m.payments[p.ID] = &p
	return p.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Payment, int, error) {
	var out []Payment
	for _, p := range m.payments {
		if filter.InvoiceID > 0 && p.InvoiceID != filter.InvoiceID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, *p)
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

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, from, to Status, at time.Time, notes string) error {
	p, ok := m.payments[id]
	if !ok || p.Status != from {
		return shared.ErrInvalidTransition
	}
	p.Status = to
	switch to {
	case StatusRejected:
		p.RejectReason = notes
	case StatusVerifiedByAccountant:
		p.AccountantNotes = notes
		p.VerifiedAt = &at
	case StatusVerifiedByOps:
		p.OpsNotes = notes
		p.VerifiedAt = &at
	}
	return nil
}

func (m *memoryRepo) ApplyVerification(_ context.Context, paymentID, invoiceID int64, amount decimal.Decimal, at time.Time, notes string) error {
	p, ok := m.payments[paymentID]
	if !ok || p.Status != StatusVerifiedByAccountant {
		return shared.ErrInvalidTransition
	}

	drafts, leftover := billing.Allocate(amount, m.installments[invoiceID])
	if leftover.GreaterThan(decimal.Zero) {
		return shared.ErrOverpayment
	}

	p.Status = StatusVerifiedByOps
	p.OpsNotes = notes
	p.VerifiedAt = &at
	for _, draft := range drafts {
		m.allocations = append(m.allocations, billing.Allocation{
			PaymentID:     paymentID,
			InstallmentID: draft.InstallmentID,
			Amount:        draft.Amount,
			Date:          at,
		})
		list := m.installments[invoiceID]
		for i := range list {
			if list[i].ID == draft.InstallmentID {
				list[i].PaidAmount = draft.NewPaid
				list[i].Status = draft.NewStatus
			}
		}
	}
	return nil
}

func (m *memoryRepo) InvoiceExists(_ context.Context, invoiceID int64) (bool, error) {
	_, ok := m.installments[invoiceID]
	return ok, nil
}

type countingLocker struct {
	acquired int
	released int
	fail     error
}

func (l *countingLocker) Acquire(context.Context, int64) (func(), error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.acquired++
	return func() { l.released++ }, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedInvoice(repo *memoryRepo, invoiceID int64, amounts ...string) {
	for i, a := range amounts {
		repo.installments[invoiceID] = append(repo.installments[invoiceID], billing.Installment{
			ID:            invoiceID*100 + int64(i+1),
			InvoiceID:     invoiceID,
			SequenceIndex: i,
			Amount:        dec(a),
			PaidAmount:    decimal.Zero,
			Status:        billing.InstallmentPending,
		})
	}
}

func newTestService(repo Repository, locker Locker) *Service {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return NewService(repo, locker, nil, func() time.Time { return now })
}

var (
	customer   = shared.Actor{ID: 1, Role: shared.RoleCustomer}
	accountant = shared.Actor{ID: 2, Role: shared.RoleAccountant}
	ops        = shared.Actor{ID: 3, Role: shared.RoleOperations}
)

func submitPayment(t *testing.T, svc *Service, invoiceID int64, amount string) *Payment {
	t.Helper()
	p, err := svc.Submit(context.Background(), customer, SubmitPaymentRequest{
		InvoiceID: invoiceID,
		Amount:    dec(amount),
		Method:    "bank_transfer",
		Kind:      KindPartial,
	})
	require.NoError(t, err)
	return p
}

func TestSubmitRecordsClaim(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540", "8260")
	svc := newTestService(repo, &countingLocker{})

	p := submitPayment(t, svc, 7, "5000")
	require.Equal(t, StatusSubmitted, p.Status)
	require.Equal(t, int64(1), p.SubmittedBy)
	require.True(t, p.Amount.Equal(dec("5000")))
	require.Empty(t, repo.allocations, "submission must not touch installments")
}

func TestSubmitRejectsNonPositiveAmount(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, nil)

	_, err := svc.Submit(context.Background(), customer, SubmitPaymentRequest{
		InvoiceID: 7, Amount: decimal.Zero, Method: "upi", Kind: KindPartial,
	})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestSubmitUnknownInvoice(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	_, err := svc.Submit(context.Background(), customer, SubmitPaymentRequest{
		InvoiceID: 99, Amount: dec("100"), Method: "upi", Kind: KindPartial,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

// Submission deliberately skips a balance check: overlapping claims queue
// and resolve in verification order.
func TestSubmitAllowsAmountBeyondBalance(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, nil)

	p := submitPayment(t, svc, 7, "999999")
	require.Equal(t, StatusSubmitted, p.Status)
}

func TestVerifyByAccountantRequiresRole(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, nil)
	p := submitPayment(t, svc, 7, "1000")

	_, err := svc.VerifyByAccountant(context.Background(), ops, p.ID, "looks fine")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	verified, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "matched bank statement")
	require.NoError(t, err)
	require.Equal(t, StatusVerifiedByAccountant, verified.Status)
	require.Equal(t, "matched bank statement", verified.AccountantNotes)
	require.Empty(t, repo.allocations, "first stage must not allocate")
}

func TestVerifyByAccountantOnlyFromSubmitted(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, nil)
	p := submitPayment(t, svc, 7, "1000")

	_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)
	_, err = svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestVerifyByOpsAllocatesWaterfall(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540", "8260")
	locker := &countingLocker{}
	svc := newTestService(repo, locker)

	p := submitPayment(t, svc, 7, "5000")
	_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)

	verified, err := svc.VerifyByOps(context.Background(), ops, p.ID, "receipt confirmed")
	require.NoError(t, err)
	require.Equal(t, StatusVerifiedByOps, verified.Status)

	require.Len(t, repo.allocations, 2)
	require.True(t, repo.allocations[0].Amount.Equal(dec("3540")))
	require.True(t, repo.allocations[1].Amount.Equal(dec("1460")))

	list := repo.installments[7]
	require.Equal(t, billing.InstallmentPaid, list[0].Status)
	require.Equal(t, billing.InstallmentPartialPaid, list[1].Status)
	require.True(t, list[1].PaidAmount.Equal(dec("1460")))

	require.Equal(t, 1, locker.acquired)
	require.Equal(t, 1, locker.released, "lock must be released")
}

func TestVerifyByOpsRequiresAccountantFirst(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, &countingLocker{})
	p := submitPayment(t, svc, 7, "1000")

	_, err := svc.VerifyByOps(context.Background(), ops, p.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Empty(t, repo.allocations)
}

func TestVerifyByOpsRequiresRole(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, &countingLocker{})
	p := submitPayment(t, svc, 7, "1000")
	_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)

	_, err = svc.VerifyByOps(context.Background(), accountant, p.ID, "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestVerifyByOpsOverpaymentPersistsNothing(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540", "8260")
	svc := newTestService(repo, &countingLocker{})

	p := submitPayment(t, svc, 7, "12000")
	_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)

	_, err = svc.VerifyByOps(context.Background(), ops, p.ID, "")
	require.ErrorIs(t, err, shared.ErrOverpayment)

	require.Empty(t, repo.allocations)
	for _, inst := range repo.installments[7] {
		require.Equal(t, billing.InstallmentPending, inst.Status)
		require.True(t, inst.PaidAmount.IsZero())
	}
	stuck, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVerifiedByAccountant, stuck.Status, "payment stays at the accountant stage")
}

func TestVerifyByOpsDoubleApplicationGuard(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540", "8260")
	svc := newTestService(repo, &countingLocker{})

	p := submitPayment(t, svc, 7, "3540")
	_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)
	_, err = svc.VerifyByOps(context.Background(), ops, p.ID, "")
	require.NoError(t, err)

	_, err = svc.VerifyByOps(context.Background(), ops, p.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Len(t, repo.allocations, 1, "installment must be credited exactly once")
}

// The waterfall runs against the installment rows as they stand at
// verification time, so a second payment adds to what the first one paid
// instead of overwriting it.
func TestVerifyByOpsSequentialPaymentsAccumulate(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, &countingLocker{})

	first := submitPayment(t, svc, 7, "2000")
	second := submitPayment(t, svc, 7, "1540")
	for _, p := range []*Payment{first, second} {
		_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
		require.NoError(t, err)
		_, err = svc.VerifyByOps(context.Background(), ops, p.ID, "")
		require.NoError(t, err)
	}

	inst := repo.installments[7][0]
	require.True(t, inst.PaidAmount.Equal(dec("3540")), "payments must accumulate, got %s", inst.PaidAmount)
	require.Equal(t, billing.InstallmentPaid, inst.Status)

	require.Len(t, repo.allocations, 2)
	require.True(t, repo.allocations[0].Amount.Equal(dec("2000")))
	require.True(t, repo.allocations[1].Amount.Equal(dec("1540")))
}

func TestVerifyByOpsLockHeld(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, &countingLocker{fail: shared.ErrLockHeld})

	p := submitPayment(t, svc, 7, "1000")
	_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)

	_, err = svc.VerifyByOps(context.Background(), ops, p.ID, "")
	require.ErrorIs(t, err, shared.ErrLockHeld)
	require.Empty(t, repo.allocations)
}

func TestRejectAtAccountantStage(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540", "8260")
	svc := newTestService(repo, &countingLocker{})

	p := submitPayment(t, svc, 7, "5000")
	rejected, err := svc.Reject(context.Background(), accountant, p.ID, "proof image unreadable")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "proof image unreadable", rejected.RejectReason)

	require.Empty(t, repo.allocations, "rejected payment leaves no allocation rows")
	for _, inst := range repo.installments[7] {
		require.Equal(t, billing.InstallmentPending, inst.Status)
		require.True(t, inst.PaidAmount.IsZero())
	}
}

func TestRejectAfterAccountantVerification(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, &countingLocker{})

	p := submitPayment(t, svc, 7, "1000")
	_, err := svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), ops, p.ID, "duplicate claim")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
}

func TestRejectGuards(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, &countingLocker{})
	p := submitPayment(t, svc, 7, "3540")

	_, err := svc.Reject(context.Background(), customer, p.ID, "changed my mind")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.VerifyByAccountant(context.Background(), accountant, p.ID, "")
	require.NoError(t, err)
	_, err = svc.VerifyByOps(context.Background(), ops, p.ID, "")
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), ops, p.ID, "too late")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestListFilters(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	seedInvoice(repo, 8, "1000")
	svc := newTestService(repo, &countingLocker{})

	submitPayment(t, svc, 7, "100")
	p2 := submitPayment(t, svc, 7, "200")
	submitPayment(t, svc, 8, "300")

	_, err := svc.VerifyByAccountant(context.Background(), accountant, p2.ID, "")
	require.NoError(t, err)

	all, pagination, err := svc.List(context.Background(), ListFilter{InvoiceID: 7})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 2, pagination.Total)

	pending, _, err := svc.List(context.Background(), ListFilter{InvoiceID: 7, Status: StatusSubmitted})
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestListPaginates(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	svc := newTestService(repo, &countingLocker{})

	submitPayment(t, svc, 7, "100")
	second := submitPayment(t, svc, 7, "200")
	third := submitPayment(t, svc, 7, "300")

	page, pagination, err := svc.List(context.Background(), ListFilter{InvoiceID: 7, Page: 2, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, second.ID, page[0].ID)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)
	require.Equal(t, 2, pagination.Page)

	last, _, err := svc.List(context.Background(), ListFilter{InvoiceID: 7, Page: 3, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.Equal(t, third.ID, last[0].ID)

	empty, pagination, err := svc.List(context.Background(), ListFilter{InvoiceID: 7, Page: 9, PerPage: 1})
	require.NoError(t, err)
	require.Empty(t, empty)
	require.Equal(t, 3, pagination.Total)
}

type failingNotifier struct{}

func (failingNotifier) PaymentEvent(context.Context, *Payment, string) error {
	return errors.New("broker down")
}

// Notification failures are advisory and never fail the transition.
func TestNotifierErrorsAreSwallowed(t *testing.T) {
	repo := newMemoryRepo()
	seedInvoice(repo, 7, "3540")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo, &countingLocker{}, failingNotifier{}, func() time.Time { return now })

	p, err := svc.Submit(context.Background(), customer, SubmitPaymentRequest{
		InvoiceID: 7, Amount: dec("100"), Method: "cash", Kind: KindPartial,
	})
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, p.Status)
}
