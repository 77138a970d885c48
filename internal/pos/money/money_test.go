package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeSingleDiscountedLine(t *testing.T) {
	lines := []Line{
		{Quantity: 2, UnitPrice: dec("100"), DiscountPercent: dec("10")},
	}

	got := Compute(lines, dec("16"))

	assert.True(t, got.Subtotal.Equal(dec("200")), "subtotal %s", got.Subtotal)
	assert.True(t, got.DiscountAmount.Equal(dec("20")), "discount %s", got.DiscountAmount)
	assert.True(t, got.TaxableBase.Equal(dec("180")), "base %s", got.TaxableBase)
	assert.True(t, got.TaxAmount.Equal(dec("28.8")), "tax %s", got.TaxAmount)
	assert.True(t, got.TotalDue.Equal(dec("208.8")), "total %s", got.TotalDue)
}

func TestComputeTotalDueIsBasePlusTax(t *testing.T) {
	carts := [][]Line{
		{{Quantity: 3, UnitPrice: dec("19.99"), DiscountPercent: dec("7.5")}},
		{
			{Quantity: 1, UnitPrice: dec("0.01")},
			{Quantity: 17, UnitPrice: dec("3.33"), DiscountPercent: dec("33.33")},
		},
		{{Quantity: 5, UnitPrice: dec("1234.56"), DiscountPercent: dec("100")}},
		{},
	}

	for _, lines := range carts {
		got := Compute(lines, dec("16"))
		assert.True(t, got.TotalDue.Equal(got.TaxableBase.Add(got.TaxAmount)),
			"total %s base %s tax %s", got.TotalDue, got.TaxableBase, got.TaxAmount)
		assert.False(t, got.TotalDue.IsNegative())
	}
}

func TestComputeClampsAtZero(t *testing.T) {
	lines := []Line{
		{Quantity: 1, UnitPrice: dec("50"), DiscountPercent: dec("150")},
	}

	got := Compute(lines, dec("16"))

	assert.True(t, got.DiscountAmount.Equal(dec("50")), "discount capped at 100%%, got %s", got.DiscountAmount)
	assert.True(t, got.TaxableBase.IsZero())
	assert.True(t, got.TaxAmount.IsZero())
	assert.True(t, got.TotalDue.IsZero())
}

func TestComputeIgnoresNonPositiveQuantity(t *testing.T) {
	lines := []Line{
		{Quantity: 0, UnitPrice: dec("100")},
		{Quantity: -2, UnitPrice: dec("100")},
		{Quantity: 1, UnitPrice: dec("40")},
	}

	got := Compute(lines, dec("0"))

	assert.True(t, got.Subtotal.Equal(dec("40")))
	assert.True(t, got.TotalDue.Equal(dec("40")))
}

func TestComputeIsIdempotent(t *testing.T) {
	lines := []Line{
		{Quantity: 4, UnitPrice: dec("12.49"), DiscountPercent: dec("5")},
		{Quantity: 2, UnitPrice: dec("99.90")},
	}

	first := Compute(lines, dec("16"))
	second := Compute(lines, dec("16"))

	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.DiscountAmount.Equal(second.DiscountAmount))
	require.True(t, first.TaxAmount.Equal(second.TaxAmount))
	require.True(t, first.TotalDue.Equal(second.TotalDue))
}

func TestLineTotal(t *testing.T) {
	assert.True(t, LineTotal(Line{Quantity: 2, UnitPrice: dec("100"), DiscountPercent: dec("10")}).Equal(dec("180")))
	assert.True(t, LineTotal(Line{Quantity: 0, UnitPrice: dec("100")}).IsZero())
	assert.True(t, LineTotal(Line{Quantity: 1, UnitPrice: dec("-5")}).IsZero())
}

func TestDiscountAmountRoundsToCents(t *testing.T) {
	got := DiscountAmount(Line{Quantity: 1, UnitPrice: dec("9.99"), DiscountPercent: dec("7.5")})
	assert.Equal(t, "0.75", got.StringFixed(2))
}
