package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocate applies amount across installments as a strict waterfall:
// earliest sequence first, min(remaining, outstanding) per row, no skipping.
//
// The returned leftover is whatever could not be applied once every
// installment is full. Callers must surface a positive leftover as an
// overpayment; the engine never absorbs excess funds.
func Allocate(amount decimal.Decimal, installments []Installment) (drafts []AllocationDraft, leftover decimal.Decimal) {
	ordered := make([]Installment, len(installments))
	copy(ordered, installments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SequenceIndex < ordered[j].SequenceIndex
	})

	remaining := amount
	for _, inst := range ordered {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		outstanding := inst.Outstanding()
		if outstanding.LessThanOrEqual(decimal.Zero) {
			continue
		}
		apply := decimal.Min(remaining, outstanding)
		newPaid := inst.PaidAmount.Add(apply)
		drafts = append(drafts, AllocationDraft{
			InstallmentID: inst.ID,
			Amount:        apply,
			NewPaid:       newPaid,
			NewStatus:     DeriveStatus(newPaid, inst.Amount),
		})
		remaining = remaining.Sub(apply)
	}
	return drafts, remaining
}
