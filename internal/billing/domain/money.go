package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeTax returns the tax amount and total for a subtotal at rate percent.
// taxAmount = round(subtotal * rate / 100, 2); total = subtotal + taxAmount.
func ComputeTax(subtotal, rate decimal.Decimal) (taxAmount, total decimal.Decimal) {
	subtotal = RoundMoney(subtotal)
	taxAmount = RoundMoney(subtotal.Mul(rate).Div(hundred))
	return taxAmount, subtotal.Add(taxAmount)
}
