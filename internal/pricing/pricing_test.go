package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeScenario(t *testing.T) {
	in := Input{
		Lines: []Line{
			{Name: "Hotel Deluxe", Supplier: "Sea View Resorts", Quantity: d("2"), UnitCost: d("5000")},
		},
		Discount:      decimal.Zero,
		TCSPercent:    DefaultTCSPercent,
		TravelerCount: 2,
	}

	summary, err := Compute(in)
	require.NoError(t, err)
	require.True(t, summary.Subtotal.Equal(d("10000")), "subtotal=%s", summary.Subtotal)
	require.True(t, summary.Taxes.Equal(d("1800")), "taxes=%s", summary.Taxes)
	require.True(t, summary.Total.Equal(d("11800")), "total=%s", summary.Total)
	require.True(t, summary.PerPerson.Equal(d("5900")), "per_person=%s", summary.PerPerson)
	require.True(t, summary.DepositDue.Equal(d("3540")), "deposit=%s", summary.DepositDue)
	require.True(t, summary.TCS.Equal(d("200")), "tcs=%s", summary.TCS)
}

func TestComputeEmptyLines(t *testing.T) {
	summary, err := Compute(Input{TravelerCount: 0})
	require.NoError(t, err)
	require.True(t, summary.Subtotal.IsZero())
	require.True(t, summary.Taxes.IsZero())
	require.True(t, summary.Total.IsZero())
	require.True(t, summary.PerPerson.IsZero())
	require.True(t, summary.DepositDue.IsZero())
}

func TestComputeGuardsTravelerCount(t *testing.T) {
	in := Input{
		Lines:         []Line{{Name: "Visa", Quantity: d("1"), UnitCost: d("100")}},
		TravelerCount: 0,
	}
	summary, err := Compute(in)
	require.NoError(t, err)
	require.True(t, summary.PerPerson.Equal(summary.Total))
}

// A zero rate is taken at face value, not swapped for the default.
func TestComputeZeroTCSMeansNoTCS(t *testing.T) {
	in := Input{
		Lines:         []Line{{Name: "Hotel", Quantity: d("2"), UnitCost: d("5000")}},
		TCSPercent:    decimal.Zero,
		TravelerCount: 2,
	}
	summary, err := Compute(in)
	require.NoError(t, err)
	require.True(t, summary.TCS.IsZero(), "tcs=%s", summary.TCS)
}

func TestComputeRejectsNegativeLines(t *testing.T) {
	for _, in := range []Input{
		{Lines: []Line{{Name: "bad qty", Quantity: d("-1"), UnitCost: d("100")}}},
		{Lines: []Line{{Name: "bad cost", Quantity: d("1"), UnitCost: d("-100")}}},
	} {
		_, err := Compute(in)
		require.ErrorIs(t, err, shared.ErrInvalidLineItem)
	}
}

func TestComputeIdempotent(t *testing.T) {
	in := Input{
		Lines: []Line{
			{Name: "Hotel", Quantity: d("3"), UnitCost: d("4210.55")},
			{Name: "Transfers", Quantity: d("2"), UnitCost: d("999.99")},
		},
		Discount:      d("500"),
		TCSPercent:    d("5"),
		TravelerCount: 3,
	}

	first, err := Compute(in)
	require.NoError(t, err)
	second, err := Compute(in)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// total == subtotal + taxes - discount always holds
	require.True(t, first.Total.Equal(first.Subtotal.Add(first.Taxes).Sub(first.Discount)))
}

func TestComputeDiscountApplied(t *testing.T) {
	in := Input{
		Lines:         []Line{{Name: "Package", Quantity: d("1"), UnitCost: d("20000")}},
		Discount:      d("1000"),
		TravelerCount: 4,
	}
	summary, err := Compute(in)
	require.NoError(t, err)
	require.True(t, summary.Total.Equal(d("22600"))) // 20000 + 3600 - 1000
	require.True(t, summary.PerPerson.Equal(d("5650")))
}
