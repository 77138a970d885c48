// Package money prices a sale draft. All functions are stateless; totals are
// recomputed in full from the lines so repeated calls on the same input
// always agree.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one priced cart position. DiscountPercent is 0..100; a nil
// pointer means no discount was entered, which is not the same as 0 for
// update semantics but prices identically.
type Line struct {
	Quantity        int32
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// Totals is the full monetary breakdown of a cart. TotalDue is always
// TaxableBase + TaxAmount exactly, rounding applied before the final sum.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableBase    decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalDue       decimal.Decimal
}

// Compute aggregates the lines under the given tax rate percentage.
// Every component clamps at zero.
func Compute(lines []Line, taxRatePct decimal.Decimal) Totals {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		gross := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if gross.IsNegative() {
			gross = decimal.Zero
		}
		subtotal = subtotal.Add(gross)
		discount = discount.Add(gross.Mul(clampPercent(l.DiscountPercent)).Div(hundred))
	}

	subtotal = subtotal.Round(2)
	discount = discount.Round(2)

	base := subtotal.Sub(discount)
	if base.IsNegative() {
		base = decimal.Zero
	}

	tax := base.Mul(clampPercent(taxRatePct)).Div(hundred).Round(2)

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxableBase:    base,
		TaxAmount:      tax,
		TotalDue:       base.Add(tax),
	}
}

// LineTotal is the discounted extended price of a single line, clamped at
// zero and rounded to cents.
func LineTotal(l Line) decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	gross := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	net := gross.Sub(gross.Mul(clampPercent(l.DiscountPercent)).Div(hundred))
	if net.IsNegative() {
		return decimal.Zero
	}
	return net.Round(2)
}

// DiscountAmount is the absolute discount of one line, rounded to cents.
func DiscountAmount(l Line) decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	gross := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	if gross.IsNegative() {
		return decimal.Zero
	}
	return gross.Mul(clampPercent(l.DiscountPercent)).Div(hundred).Round(2)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
