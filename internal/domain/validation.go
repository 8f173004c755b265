package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money is kept in.
const MoneyPlaces = 2

// maxAnnualRate is the exclusive upper bound of a NUMERIC(5,2) rate.
var maxAnnualRate = decimal.NewFromInt(1000)

// ValidAmount reports whether amount is positive and has no fraction of a cent.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && inCents(amount)
}

// ValidRate reports whether an annual percentage rate is positive, below
// 1000 and has at most two decimal places.
func ValidRate(rate decimal.Decimal) bool {
	return rate.IsPositive() && rate.LessThan(maxAnnualRate) && inCents(rate)
}

// inCents ignores trailing zeros, so 10.500 counts as 10.50.
func inCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}
