// Package reporting builds staff-facing views over billing data, chiefly
// the overdue installment report.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Severity buckets an overdue installment by how late it is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DaysOverdue returns whole days past due, zero when not yet due.
func DaysOverdue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}

// ClassifySeverity maps lateness to a severity bucket.
func ClassifySeverity(daysOverdue int) Severity {
	switch {
	case daysOverdue > 30:
		return SeverityHigh
	case daysOverdue > 15:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ProgressPct returns paid/amount as a percentage clamped to [0, 100]. A
// zero-amount installment counts as fully paid.
func ProgressPct(paid, amount decimal.Decimal) int {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 100
	}
	pct := paid.Div(amount).Mul(decimal.NewFromInt(100)).IntPart()
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders a decimal with thousands separators for report
// display, e.g. "123,456.00".
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return printer.Sprintf("%.2f", f)
}
