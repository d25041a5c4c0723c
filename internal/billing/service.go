package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RepositoryPort defines the read-side data access billing needs.
type RepositoryPort interface {
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoicesByRequest(ctx context.Context, requestID int64) ([]Invoice, error)
	ListInstallments(ctx context.Context, invoiceID int64) ([]Installment, error)
	ListAllocationsByPayment(ctx context.Context, paymentID int64) ([]Allocation, error)
}

// Service handles invoice read operations. Writes happen through the
// quotation accept transition and the payment verification chain; there is
// deliberately no standalone "create invoice" operation.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetInvoice returns an invoice with its installments and paid aggregates.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*InvoiceWithInstallments, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	installments, err := s.repo.ListInstallments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}

	paid := decimal.Zero
	for _, inst := range installments {
		paid = paid.Add(inst.PaidAmount)
	}
	return &InvoiceWithInstallments{
		Invoice:      *inv,
		Installments: installments,
		PaidAmount:   paid,
		Balance:      inv.TotalAmount.Sub(paid),
	}, nil
}

// ListByRequest returns all invoices raised for a travel request.
func (s *Service) ListByRequest(ctx context.Context, requestID int64) ([]Invoice, error) {
	return s.repo.ListInvoicesByRequest(ctx, requestID)
}

// AllocationsForPayment returns the append-only allocation trail.
func (s *Service) AllocationsForPayment(ctx context.Context, paymentID int64) ([]Allocation, error) {
	return s.repo.ListAllocationsByPayment(ctx, paymentID)
}
