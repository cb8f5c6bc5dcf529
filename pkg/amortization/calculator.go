// Package amortization turns loan terms into a deterministic installment schedule.
package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/utils"
)

// scale is the number of fractional digits kept on every intermediate amount.
const scale = 16

var (
	one           = decimal.NewFromInt(1)
	monthsPercent = decimal.NewFromInt(1200)
)

// Period is one computed installment.
type Period struct {
	Number         int             `json:"number"`
	DueDate        time.Time       `json:"due_date"`
	Amount         decimal.Decimal `json:"amount"`
	Principal      decimal.Decimal `json:"principal"`
	Interest       decimal.Decimal `json:"interest"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// Terms are the rate and method a schedule is computed with.
type Terms struct {
	AnnualRate decimal.Decimal
	Method     Method
}

// Schedule computes a schedule for the given principal and term under t.
func (t Terms) Schedule(principal decimal.Decimal, termMonths int, start time.Time) ([]Period, error) {
	return Compute(principal, t.AnnualRate, termMonths, start, t.Method)
}

// MonthlyRate converts an annual percentage into the periodic rate. Non-positive rates yield zero.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	if !annualRatePercent.IsPositive() {
		return decimal.Zero
	}
	return annualRatePercent.DivRound(monthsPercent, scale)
}

// Compute builds the installment schedule for a loan. It has no side effects: identical inputs
// always produce identical output.
//
// The final period absorbs any rounding residue so its closing balance is exactly zero and the
// principal portions add up exactly to principal.
func Compute(principal, annualRatePercent decimal.Decimal, termMonths int, start time.Time, method Method) ([]Period, error) {
	if !principal.IsPositive() {
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("principal must be greater than 0, got %s", principal))
	}
	if termMonths <= 0 {
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("term must be at least 1 month, got %d", termMonths))
	}
	if start.IsZero() {
		return nil, customError.WrapInvalidArgument("start date is required")
	}

	r := MonthlyRate(annualRatePercent)

	switch method {
	case French:
		return french(principal, r, termMonths, start), nil
	case German:
		return german(principal, r, termMonths, start), nil
	case American:
		return american(principal, r, termMonths, start), nil
	default:
		return nil, customError.WrapInvalidConfiguration(fmt.Sprintf("unknown amortization method %q", method))
	}
}

// FixedInstallment is the constant French installment for principal over n months at periodic rate r.
func FixedInstallment(principal, r decimal.Decimal, n int) decimal.Decimal {
	if r.IsZero() {
		return principal.DivRound(decimal.NewFromInt(int64(n)), scale)
	}
	growth := powInt(one.Add(r), n)
	return principal.Mul(r).Mul(growth).DivRound(growth.Sub(one), scale)
}

func french(principal, r decimal.Decimal, n int, start time.Time) []Period {
	installment := FixedInstallment(principal, r, n)

	return build(principal, r, n, start, func(opening decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
		interest := opening.Mul(r).Round(scale)
		return installment.Sub(interest), interest
	})
}

func german(principal, r decimal.Decimal, n int, start time.Time) []Period {
	fixed := principal.DivRound(decimal.NewFromInt(int64(n)), scale)

	return build(principal, r, n, start, func(opening decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
		return fixed, opening.Mul(r).Round(scale)
	})
}

func american(principal, r decimal.Decimal, n int, start time.Time) []Period {
	interest := principal.Mul(r).Round(scale)

	return build(principal, r, n, start, func(decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
		return decimal.Zero, interest
	})
}

// split returns the principal and interest portions of a period given its opening balance.
type split func(opening decimal.Decimal) (principal, interest decimal.Decimal)

func build(principal, r decimal.Decimal, n int, start time.Time, portions split) []Period {
	periods := make([]Period, 0, n)
	balance := principal

	for i := 1; i <= n; i++ {
		opening := balance
		var capital, interest decimal.Decimal

		if i == n {
			capital = opening
			interest = opening.Mul(r).Round(scale)
		} else {
			capital, interest = portions(opening)
		}
		balance = opening.Sub(capital)

		periods = append(periods, Period{
			Number:         i,
			DueDate:        utils.CalculateDueDate(start, i),
			Amount:         capital.Add(interest),
			Principal:      capital,
			Interest:       interest,
			OpeningBalance: opening,
			ClosingBalance: balance,
		})
	}

	return periods
}

// powInt raises base to a non-negative integer power by squaring, rounding at each step so the
// digit count stays bounded.
func powInt(base decimal.Decimal, exp int) decimal.Decimal {
	const workScale = 2 * scale
	result := one
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Round(workScale)
		}
		base = base.Mul(base).Round(workScale)
		exp >>= 1
	}
	return result
}

// TotalInterest adds up the interest portions of periods.
func TotalInterest(periods []Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(p.Interest)
	}
	return total
}

// TotalPayable adds up the installment amounts of periods.
func TotalPayable(periods []Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(p.Amount)
	}
	return total
}
