// Package pricing reduces a quotation's cost-breakup lines to the derived
// money figures. Everything here is pure: the same line list always yields
// the same summary, so callers can recompute on every change without
// desynchronizing totals.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

var (
	// TaxRate is the fixed GST rate applied on the subtotal.
	TaxRate = decimal.NewFromFloat(0.18)
	// DepositRate is the conventional advance share of the total.
	DepositRate = decimal.NewFromFloat(0.30)
	// DefaultTCSPercent is the statutory rate callers apply when a request
	// leaves the TCS rate unset. Compute itself takes the rate verbatim, so
	// an explicit zero means no TCS.
	DefaultTCSPercent = decimal.NewFromInt(2)

	hundred = decimal.NewFromInt(100)
)

// Line is one cost-breakup entry. Value type; Total is always derived.
type Line struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Supplier string          `json:"supplier"`
	Date     time.Time       `json:"date"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Total returns quantity × unit cost for the line.
func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// Summary holds the derived pricing figures. Never stored independently of
// the line list that produced it.
type Summary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Taxes      decimal.Decimal `json:"taxes"`
	TCS        decimal.Decimal `json:"tcs"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	PerPerson  decimal.Decimal `json:"per_person"`
	DepositDue decimal.Decimal `json:"deposit_due"`
}

// Input carries everything Compute needs.
type Input struct {
	Lines         []Line
	Discount      decimal.Decimal
	TCSPercent    decimal.Decimal
	TravelerCount int
}

// Compute derives the pricing summary from the current line list.
//
// An empty line list yields an all-zero summary. A negative quantity or
// unit cost on any line is rejected with shared.ErrInvalidLineItem.
func Compute(in Input) (Summary, error) {
	for _, line := range in.Lines {
		if line.Quantity.IsNegative() || line.UnitCost.IsNegative() {
			return Summary{}, fmt.Errorf("%w: %q has negative quantity or unit cost", shared.ErrInvalidLineItem, line.Name)
		}
	}

	subtotal := decimal.Zero
	for _, line := range in.Lines {
		subtotal = subtotal.Add(line.Total())
	}
	subtotal = subtotal.Round(2)

	taxes := subtotal.Mul(TaxRate).Round(2)
	tcs := subtotal.Mul(in.TCSPercent).Div(hundred).Round(2)
	total := subtotal.Add(taxes).Sub(in.Discount).Round(2)

	travelers := in.TravelerCount
	if travelers < 1 {
		travelers = 1
	}
	perPerson := total.Div(decimal.NewFromInt(int64(travelers))).Round(2)
	deposit := total.Mul(DepositRate).Round(2)

	return Summary{
		Subtotal:   subtotal,
		Taxes:      taxes,
		TCS:        tcs,
		Discount:   in.Discount.Round(2),
		Total:      total,
		PerPerson:  perPerson,
		DepositDue: deposit,
	}, nil
}
