// Package ledger owns the installment set of a single loan and keeps it consistent.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/pkg/amortization"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/utils"
)

// Ledger is the ordered installment set of one loan together with the terms it was computed with.
// It is not safe for concurrent use; callers serialize access per loan.
type Ledger struct {
	loanID       uuid.UUID
	terms        amortization.Terms
	installments []*domain.Installment

	// Now stamps CreatedAt on materialized installments.
	Now func() time.Time
}

// Totals is the aggregate view of a ledger at a point in time.
type Totals struct {
	TotalInterest decimal.Decimal
	TotalPayable  decimal.Decimal
	TotalPaid     decimal.Decimal
	TotalPending  decimal.Decimal
	TotalOverdue  decimal.Decimal
	OverdueCount  int
	PendingCount  int
	SettledCount  int
	NextDue       *domain.Installment
}

// New wraps existing installments. The slice is re-ordered by sequence number; the installments
// themselves are shared with the caller.
func New(loanID uuid.UUID, terms amortization.Terms, installments []*domain.Installment) *Ledger {
	sorted := make([]*domain.Installment, len(installments))
	copy(sorted, installments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})

	return &Ledger{
		loanID:       loanID,
		terms:        terms,
		installments: sorted,
		Now:          time.Now,
	}
}

// LoanID returns the loan the ledger belongs to.
func (l *Ledger) LoanID() uuid.UUID {
	return l.loanID
}

// Terms returns the rate and method used for recalculations.
func (l *Ledger) Terms() amortization.Terms {
	return l.terms
}

// Installments returns every installment in sequence order.
func (l *Ledger) Installments() []*domain.Installment {
	return l.installments
}

// Materialize replaces the whole installment set with schedule. Sequence numbers restart at 1.
func (l *Ledger) Materialize(schedule []amortization.Period) []*domain.Installment {
	now := l.Now()
	installments := make([]*domain.Installment, 0, len(schedule))

	for i, period := range schedule {
		installments = append(installments, &domain.Installment{
			ID:                uuid.New(),
			LoanID:            l.loanID,
			SequenceNumber:    i + 1,
			DueDate:           period.DueDate,
			InstallmentAmount: period.Amount,
			PrincipalPortion:  period.Principal,
			InterestPortion:   period.Interest,
			OpeningBalance:    period.OpeningBalance,
			ClosingBalance:    period.ClosingBalance,
			CreatedAt:         now,
		})
	}

	l.installments = installments
	return installments
}

// Pending returns unsettled installments in ascending sequence order.
// Settlement is FIFO, so this order decides which installment is paid next.
func (l *Ledger) Pending() []*domain.Installment {
	var pending []*domain.Installment
	for _, inst := range l.installments {
		if !inst.Settled {
			pending = append(pending, inst)
		}
	}
	return pending
}

// Settled returns settled installments in ascending sequence order.
func (l *Ledger) Settled() []*domain.Installment {
	var settled []*domain.Installment
	for _, inst := range l.installments {
		if inst.Settled {
			settled = append(settled, inst)
		}
	}
	return settled
}

// TotalPending sums the installment amounts still owed.
func (l *Ledger) TotalPending() decimal.Decimal {
	return sumAmounts(l.Pending())
}

// TotalSettled sums the installment amounts already settled.
func (l *Ledger) TotalSettled() decimal.Decimal {
	return sumAmounts(l.Settled())
}

// OutstandingPrincipal is the principal not yet retired: the opening balance of the earliest
// pending installment, or zero when nothing is pending.
func (l *Ledger) OutstandingPrincipal() decimal.Decimal {
	for _, inst := range l.installments {
		if !inst.Settled {
			return inst.OpeningBalance
		}
	}
	return decimal.Zero
}

// Required returns the first k pending installments and what it costs to settle them.
func (l *Ledger) Required(k int) ([]*domain.Installment, decimal.Decimal, error) {
	if k <= 0 {
		return nil, decimal.Zero, customError.WrapInvalidArgument(fmt.Sprintf("installments to cover must be at least 1, got %d", k))
	}
	pending := l.Pending()
	if k > len(pending) {
		return nil, decimal.Zero, customError.WrapInsufficientInstallments(k, len(pending))
	}
	covered := pending[:k]
	return covered, sumAmounts(covered), nil
}

// Settle marks the first k pending installments as settled on date and returns them.
func (l *Ledger) Settle(k int, date time.Time) ([]*domain.Installment, error) {
	covered, _, err := l.Required(k)
	if err != nil {
		return nil, err
	}
	for _, inst := range covered {
		markSettled(inst, date)
	}
	return covered, nil
}

// SettleAll marks every pending installment as settled on date and returns them.
func (l *Ledger) SettleAll(date time.Time) []*domain.Installment {
	pending := l.Pending()
	for _, inst := range pending {
		markSettled(inst, date)
	}
	return pending
}

// RecalculateRemaining re-amortizes newBalance over the pending installments, keeping their
// count and sequence positions. Settled installments are untouched.
func (l *Ledger) RecalculateRemaining(newBalance decimal.Decimal, asOf time.Time) ([]*domain.Installment, error) {
	pending := l.Pending()
	if len(pending) == 0 {
		return nil, customError.WrapInsufficientTerm()
	}

	periods, err := l.terms.Schedule(newBalance, len(pending), asOf)
	if err != nil {
		return nil, err
	}

	for i, inst := range pending {
		period := periods[i]
		inst.DueDate = period.DueDate
		inst.InstallmentAmount = period.Amount
		inst.PrincipalPortion = period.Principal
		inst.InterestPortion = period.Interest
		inst.OpeningBalance = period.OpeningBalance
		inst.ClosingBalance = period.ClosingBalance
	}

	return pending, nil
}

// Totals aggregates the ledger as of now. Pending installments due before now count as overdue.
func (l *Ledger) Totals(now time.Time) Totals {
	t := Totals{
		TotalInterest: decimal.Zero,
		TotalPayable:  decimal.Zero,
		TotalPaid:     decimal.Zero,
		TotalPending:  decimal.Zero,
		TotalOverdue:  decimal.Zero,
	}

	for _, inst := range l.installments {
		t.TotalInterest = t.TotalInterest.Add(inst.InterestPortion)
		t.TotalPayable = t.TotalPayable.Add(inst.InstallmentAmount)

		if inst.Settled {
			t.SettledCount++
			t.TotalPaid = t.TotalPaid.Add(inst.InstallmentAmount)
			continue
		}

		t.PendingCount++
		t.TotalPending = t.TotalPending.Add(inst.InstallmentAmount)
		if t.NextDue == nil {
			t.NextDue = inst
		}
		if utils.IsDateOverdue(inst.DueDate, now) {
			t.OverdueCount++
			t.TotalOverdue = t.TotalOverdue.Add(inst.InstallmentAmount)
		}
	}

	return t
}

// HasOverdue reports whether any pending installment was due before now.
func (l *Ledger) HasOverdue(now time.Time) bool {
	for _, inst := range l.Pending() {
		if utils.IsDateOverdue(inst.DueDate, now) {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants: dense 1-based sequence numbers, amounts that add up,
// and an unbroken balance chain across the pending installments. The chain is not checked across
// settled installments because a capital contribution starts a new chain at the first pending one.
func (l *Ledger) Validate() error {
	var prevPending *domain.Installment

	for i, inst := range l.installments {
		if inst.SequenceNumber != i+1 {
			return invariant("installment at position %d has sequence number %d", i+1, inst.SequenceNumber)
		}
		if !utils.NearlyEqual(inst.InstallmentAmount, inst.PrincipalPortion.Add(inst.InterestPortion)) {
			return invariant("installment %d amount %s is not principal + interest", inst.SequenceNumber, inst.InstallmentAmount)
		}
		if !utils.NearlyEqual(inst.ClosingBalance, inst.OpeningBalance.Sub(inst.PrincipalPortion)) {
			return invariant("installment %d closing balance does not follow from its opening balance", inst.SequenceNumber)
		}
		if inst.Settled {
			if prevPending != nil {
				return invariant("installment %d is settled after pending installment %d", inst.SequenceNumber, prevPending.SequenceNumber)
			}
			continue
		}
		if prevPending != nil && !utils.NearlyEqual(inst.OpeningBalance, prevPending.ClosingBalance) {
			return invariant("installment %d opening balance differs from installment %d closing balance", inst.SequenceNumber, prevPending.SequenceNumber)
		}
		prevPending = inst
	}

	if n := len(l.installments); n > 0 && !utils.NearlyEqual(l.installments[n-1].ClosingBalance, decimal.Zero) {
		return invariant("last installment does not close the balance")
	}
	return nil
}

func invariant(format string, args ...interface{}) error {
	return customError.WrapInvalidState("ledger invariant violated: " + fmt.Sprintf(format, args...))
}

func markSettled(inst *domain.Installment, date time.Time) {
	settledAt := date
	inst.Settled = true
	inst.SettledDate = &settledAt
}

func sumAmounts(installments []*domain.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range installments {
		total = total.Add(inst.InstallmentAmount)
	}
	return total
}
