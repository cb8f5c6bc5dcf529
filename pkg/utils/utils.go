package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyTolerance is the absolute difference below which two amounts are treated as equal.
// Balances are carried at full decimal precision, so anything under a thousandth of a cent is noise.
var MoneyTolerance = decimal.New(1, -5)

// CentTolerance is how far a received amount may differ from a computed one and still match it.
// Money is received in cents while schedules carry full precision.
var CentTolerance = decimal.New(5, -3)

// AddMonths moves t forward by the given number of calendar months.
// The day is clamped to the last day of the target month, so Jan 31 + 1 month is Feb 28/29
// rather than early March.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	target := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := DaysInMonth(target); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// CalculateDueDate calculates the due date for a specific installment.
// Installment 1 is due one month after the start date.
func CalculateDueDate(startDate time.Time, installmentNumber int) time.Time {
	return AddMonths(startDate, installmentNumber)
}

// DaysInMonth returns the number of days of the month t falls in.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// TruncateToDay drops the clock part of t.
func TruncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// IsDateOverdue checks if a due date has passed as of now.
// A payment due today is not overdue yet.
func IsDateOverdue(dueDate, now time.Time) bool {
	return TruncateToDay(now).After(TruncateToDay(dueDate))
}

// IsZeroWithin reports whether |d| <= tolerance.
func IsZeroWithin(d, tolerance decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(tolerance)
}

// NearlyEqual compares two amounts using MoneyTolerance.
func NearlyEqual(a, b decimal.Decimal) bool {
	return IsZeroWithin(a.Sub(b), MoneyTolerance)
}

// Sum adds up the given amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
