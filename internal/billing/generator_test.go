package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func sum(drafts []InstallmentDraft) decimal.Decimal {
	total := decimal.Zero
	for _, draft := range drafts {
		total = total.Add(draft.Amount)
	}
	return total
}

func TestBuildInstallmentsDefaultSchedule(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	drafts, err := BuildInstallments(d("11800"), decimal.Zero, Schedule{}, now)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	require.True(t, drafts[0].Amount.Equal(d("3540")), "advance=%s", drafts[0].Amount)
	require.True(t, drafts[1].Amount.Equal(d("8260")), "remainder=%s", drafts[1].Amount)
	require.Equal(t, 1, drafts[0].SequenceIndex)
	require.Equal(t, 2, drafts[1].SequenceIndex)
	require.Equal(t, now, drafts[0].DueDate)
	require.Equal(t, now.Add(DefaultRemainderOffset), drafts[1].DueDate)
}

func TestBuildInstallmentsRoundingGoesToLast(t *testing.T) {
	now := time.Now()

	// 100.01 at 30% advance: 30.00 advance, 70.01 split over 3.
	drafts, err := BuildInstallments(d("100.01"), decimal.Zero, Schedule{Count: 4}, now)
	require.NoError(t, err)
	require.Len(t, drafts, 4)
	require.True(t, sum(drafts).Equal(d("100.01")), "sum=%s", sum(drafts))

	// middle installments share equally, last absorbs the remainder
	require.True(t, drafts[1].Amount.Equal(drafts[2].Amount))
	require.False(t, drafts[3].Amount.Equal(drafts[1].Amount))
}

func TestBuildInstallmentsSumInvariant(t *testing.T) {
	now := time.Now()
	totals := []string{"11800", "99999.99", "0.03", "123456.78", "7000.01"}
	for _, total := range totals {
		for count := 1; count <= 5; count++ {
			drafts, err := BuildInstallments(d(total), decimal.Zero, Schedule{Count: count}, now)
			require.NoError(t, err, "total=%s count=%d", total, count)
			require.True(t, sum(drafts).Equal(d(total)), "total=%s count=%d sum=%s", total, count, sum(drafts))
		}
	}
}

func TestBuildInstallmentsCustomDueDates(t *testing.T) {
	now := time.Now()
	dates := []time.Time{now, now.AddDate(0, 1, 0), now.AddDate(0, 2, 0)}

	drafts, err := BuildInstallments(d("9000"), d("20"), Schedule{Count: 3, DueDates: dates}, now)
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	require.True(t, drafts[0].Amount.Equal(d("1800")))
	for i, draft := range drafts {
		require.Equal(t, dates[i], draft.DueDate)
	}
}

func TestBuildInstallmentsRejectsBadInput(t *testing.T) {
	now := time.Now()

	_, err := BuildInstallments(decimal.Zero, decimal.Zero, Schedule{}, now)
	require.Error(t, err)

	_, err = BuildInstallments(d("1000"), decimal.Zero, Schedule{Count: 3, DueDates: []time.Time{now}}, now)
	require.Error(t, err)
}

func TestNewInvoiceNumber(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	number := NewInvoiceNumber(now)
	require.True(t, strings.HasPrefix(number, "INV-20260829-"))
	require.Len(t, number, len("INV-20260829-")+8)
	require.NotEqual(t, number, NewInvoiceNumber(now))
}

func TestDeriveStatus(t *testing.T) {
	amount := d("100")
	require.Equal(t, InstallmentPending, DeriveStatus(decimal.Zero, amount))
	require.Equal(t, InstallmentPartialPaid, DeriveStatus(d("0.01"), amount))
	require.Equal(t, InstallmentPartialPaid, DeriveStatus(d("99.99"), amount))
	require.Equal(t, InstallmentPaid, DeriveStatus(amount, amount))
}
