package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyagecrm/voyagecrm/internal/billing"
)

// OutstandingSource supplies unpaid installments for the report.
type OutstandingSource interface {
	ListOutstandingInstallments(ctx context.Context) ([]billing.OutstandingInstallment, error)
}

// Clock abstracts time.
type Clock func() time.Time

// OverdueItem is one overdue installment with its derived report fields.
type OverdueItem struct {
	InstallmentID int64           `json:"installment_id"`
	SequenceIndex int             `json:"sequence_index"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	DueDate       time.Time       `json:"due_date"`
	DaysOverdue   int             `json:"days_overdue"`
	Severity      Severity        `json:"severity"`
	ProgressPct   int             `json:"progress_pct"`
}

// OverdueInvoice groups a request's overdue installments under their invoice.
type OverdueInvoice struct {
	InvoiceID        int64           `json:"invoice_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceTotal     decimal.Decimal `json:"invoice_total"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	OutstandingLabel string          `json:"outstanding_label"`
	Items            []OverdueItem   `json:"items"`
}

// OverdueGroup is all overdue invoices of one travel request.
type OverdueGroup struct {
	RequestID int64            `json:"request_id"`
	Invoices  []OverdueInvoice `json:"invoices"`
}

// OverdueReport is the full report plus summary aggregates.
type OverdueReport struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	Groups           []OverdueGroup   `json:"groups"`
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
	TotalLabel       string           `json:"total_label"`
	Counts           map[Severity]int `json:"counts"`
}

// Service assembles overdue reports.
type Service struct {
	source OutstandingSource
	now    Clock
}

// NewService builds Service instance.
func NewService(source OutstandingSource, now Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{source: source, now: now}
}

// Overdue builds the report: unpaid installments past their due date,
// grouped by travel request then invoice. Installments not yet due are
// excluded even when partially paid.
func (s *Service) Overdue(ctx context.Context) (*OverdueReport, error) {
	outstanding, err := s.source.ListOutstandingInstallments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load outstanding installments: %w", err)
	}
	now := s.now()

	report := &OverdueReport{
		GeneratedAt:      now,
		TotalOutstanding: decimal.Zero,
		Counts:           map[Severity]int{},
	}

	// rows arrive ordered by request, invoice, sequence; group on boundaries
	var group *OverdueGroup
	var invoice *OverdueInvoice
	flushInvoice := func() {
		if invoice != nil {
			invoice.OutstandingLabel = FormatAmount(invoice.Outstanding)
			group.Invoices = append(group.Invoices, *invoice)
			invoice = nil
		}
	}
	flushGroup := func() {
		flushInvoice()
		if group != nil && len(group.Invoices) > 0 {
			report.Groups = append(report.Groups, *group)
		}
		group = nil
	}

	for _, o := range outstanding {
		days := DaysOverdue(o.DueDate, now)
		if days == 0 {
			continue
		}
		if group == nil || group.RequestID != o.RequestID {
			flushGroup()
			group = &OverdueGroup{RequestID: o.RequestID}
		}
		if invoice == nil || invoice.InvoiceID != o.InvoiceID {
			flushInvoice()
			invoice = &OverdueInvoice{
				InvoiceID:     o.InvoiceID,
				InvoiceNumber: o.InvoiceNumber,
				InvoiceTotal:  o.InvoiceTotal,
				Outstanding:   decimal.Zero,
			}
		}

		severity := ClassifySeverity(days)
		item := OverdueItem{
			InstallmentID: o.ID,
			SequenceIndex: o.SequenceIndex,
			Description:   o.Description,
			Amount:        o.Amount,
			PaidAmount:    o.PaidAmount,
			Outstanding:   o.Outstanding(),
			DueDate:       o.DueDate,
			DaysOverdue:   days,
			Severity:      severity,
			ProgressPct:   ProgressPct(o.PaidAmount, o.Amount),
		}
		invoice.Items = append(invoice.Items, item)
		invoice.Outstanding = invoice.Outstanding.Add(item.Outstanding)
		report.TotalOutstanding = report.TotalOutstanding.Add(item.Outstanding)
		report.Counts[severity]++
	}
	flushGroup()

	report.TotalLabel = FormatAmount(report.TotalOutstanding)
	return report, nil
}
