// Package amortization computes French (constant-payment) loan schedules.
//
// The constant payment is derived from the closed formula in float64 and
// rounded to cents once. Every period after that works in exact decimal
// cents: interest is rounded per period from the cent-exact remaining
// balance and the rounding difference is carried into the next period.
// The last period absorbs whatever is left, so capital portions always sum
// to the principal and the final remaining balance is exactly zero.
package amortization

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when principal, rate or period count are not positive.
var ErrInvalidInput = errors.New("amortization: principal, rate and periods must be positive")

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// Period is a single row of an amortization schedule.
type Period struct {
	Number    int
	DueDate   time.Time
	Payment   decimal.Decimal
	Capital   decimal.Decimal
	Interest  decimal.Decimal
	Remaining decimal.Decimal
}

// MonthlyRate converts an annual percentage rate into a monthly fraction (A/12/100).
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(monthsInYear).Div(hundred)
}

// Payment returns the constant monthly payment M = P·r / (1 − (1+r)^−N),
// rounded to cents.
func Payment(principal, annualRate decimal.Decimal, periods int) decimal.Decimal {
	p := principal.InexactFloat64()
	r := annualRate.InexactFloat64() / 12 / 100
	m := p * r / (1 - math.Pow(1+r, -float64(periods)))
	return decimal.NewFromFloat(m).Round(2)
}

// Generate builds the full schedule for a new loan. The first installment is
// due one calendar month after base and each following one a month later.
func Generate(principal, annualRate decimal.Decimal, periods int, base time.Time) ([]Period, error) {
	return build(principal, annualRate, periods, 1, func(i int) time.Time {
		return AddMonths(base, i+1)
	})
}

// Recalculate rebuilds the tail of a schedule after a rate change. remaining
// is the capital not yet paid, firstDue the due date of the first unpaid
// installment and firstNumber the installment number the tail starts at.
func Recalculate(remaining, annualRate decimal.Decimal, periods int, firstDue time.Time, firstNumber int) ([]Period, error) {
	if firstNumber < 1 {
		return nil, ErrInvalidInput
	}
	return build(remaining, annualRate, periods, firstNumber, func(i int) time.Time {
		return AddMonths(firstDue, i)
	})
}

func build(principal, annualRate decimal.Decimal, periods, firstNumber int, dueDate func(int) time.Time) ([]Period, error) {
	if !principal.IsPositive() || !annualRate.IsPositive() || periods <= 0 {
		return nil, ErrInvalidInput
	}

	rate := MonthlyRate(annualRate)
	payment := Payment(principal, annualRate, periods)
	balance := principal.Round(2)

	schedule := make([]Period, 0, periods)
	for i := 0; i < periods; i++ {
		interest := balance.Mul(rate).Round(2)

		capital := payment.Sub(interest)
		if capital.IsNegative() {
			capital = decimal.Zero
		}
		if capital.GreaterThan(balance) {
			capital = balance
		}
		// last period settles the balance exactly
		if i == periods-1 {
			capital = balance
		}

		balance = balance.Sub(capital)
		schedule = append(schedule, Period{
			Number:    firstNumber + i,
			DueDate:   dueDate(i),
			Payment:   capital.Add(interest),
			Capital:   capital,
			Interest:  interest,
			Remaining: balance,
		})
	}

	return schedule, nil
}

// TotalCapital sums the capital portions of a schedule.
func TotalCapital(schedule []Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range schedule {
		total = total.Add(p.Capital)
	}
	return total
}
