// Package currency holds the fixed-point helpers shared by ledgers and reports.
package currency

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Default is the currency reported when none is configured.
const Default = "CLP"

// Whole rounds d to whole currency units, half away from zero.
func Whole(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Sum adds f(item) across items.
func Sum[T any](items []T, f func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(f(item))
	}
	return total
}

// Format renders d in the display format of code. Unknown codes fall back to the
// plain decimal string.
func Format(d decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return d.StringFixed(2)
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// Formatter binds Format to a configured currency code.
type Formatter struct {
	Code string
}

// Format renders d in the formatter's currency.
func (f Formatter) Format(d decimal.Decimal) string {
	code := f.Code
	if code == "" {
		code = Default
	}
	return Format(d, code)
}
