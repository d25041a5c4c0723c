package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultAdvancePercent is the conventional advance share of the total.
var DefaultAdvancePercent = decimal.NewFromInt(30)

// DefaultRemainderOffset is when the remainder falls due under the default
// two-installment schedule.
const DefaultRemainderOffset = 30 * 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// Schedule describes a caller-supplied installment plan. A zero Schedule
// selects the default two-installment plan: advance now, remainder at
// DefaultRemainderOffset.
type Schedule struct {
	Count    int
	DueDates []time.Time
}

// BuildInstallments splits total into an ordered installment plan.
//
// The advance goes to installment 1; the remainder is distributed across the
// rest. Rounding remainder is always assigned to the last installment so the
// amounts sum to total exactly.
func BuildInstallments(total, advancePercent decimal.Decimal, schedule Schedule, now time.Time) ([]InstallmentDraft, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("installment plan needs a positive total, got %s", total)
	}
	if advancePercent.IsZero() {
		advancePercent = DefaultAdvancePercent
	}

	count := schedule.Count
	if count <= 0 {
		count = 2
	}
	if len(schedule.DueDates) > 0 && len(schedule.DueDates) != count {
		return nil, fmt.Errorf("schedule has %d due dates for %d installments", len(schedule.DueDates), count)
	}

	dueDate := func(i int) time.Time {
		if len(schedule.DueDates) > 0 {
			return schedule.DueDates[i]
		}
		if i == 0 {
			return now
		}
		return now.Add(DefaultRemainderOffset)
	}

	advance := total.Mul(advancePercent).Div(hundred).Round(2)
	if count == 1 {
		advance = total
	}

	drafts := []InstallmentDraft{{
		SequenceIndex: 1,
		Description:   fmt.Sprintf("Advance payment (%s%%)", advancePercent.String()),
		Amount:        advance,
		DueDate:       dueDate(0),
	}}

	remainder := total.Sub(advance)
	rest := count - 1
	if rest > 0 {
		share := remainder.Div(decimal.NewFromInt(int64(rest))).Round(2)
		assigned := decimal.Zero
		for i := 1; i <= rest; i++ {
			amount := share
			if i == rest {
				// last installment absorbs the rounding remainder
				amount = remainder.Sub(assigned)
			}
			drafts = append(drafts, InstallmentDraft{
				SequenceIndex: i + 1,
				Description:   fmt.Sprintf("Installment %d of %d", i+1, count),
				Amount:        amount,
				DueDate:       dueDate(i),
			})
			assigned = assigned.Add(amount)
		}
	}

	sum := decimal.Zero
	for _, d := range drafts {
		sum = sum.Add(d.Amount)
	}
	if !sum.Equal(total) {
		return nil, fmt.Errorf("installment amounts sum to %s, want %s", sum, total)
	}
	return drafts, nil
}

// NewInvoiceNumber builds a human-readable unique invoice number, e.g.
// INV-20260829-4F2A91BC.
func NewInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}
