package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/pkg/amortization"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/utils"
)

var (
	start   = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	created = time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedger(t *testing.T, principal string, rate string, n int, method amortization.Method) *Ledger {
	t.Helper()
	terms := amortization.Terms{AnnualRate: d(rate), Method: method}
	periods, err := terms.Schedule(d(principal), n, start)
	require.NoError(t, err)

	l := New(uuid.New(), terms, nil)
	l.Now = func() time.Time { return created }
	l.Materialize(periods)
	return l
}

func TestMaterialize(t *testing.T) {
	l := newLedger(t, "12000", "12", 12, amortization.German)

	installments := l.Installments()
	require.Len(t, installments, 12)
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.SequenceNumber)
		assert.Equal(t, l.LoanID(), inst.LoanID)
		assert.Equal(t, created, inst.CreatedAt)
		assert.False(t, inst.Settled)
		assert.NotEqual(t, uuid.Nil, inst.ID)
	}
	assert.NoError(t, l.Validate())

	// Replacing the schedule drops every previous row.
	periods, err := l.Terms().Schedule(d("6000"), 3, start)
	require.NoError(t, err)
	replaced := l.Materialize(periods)
	assert.Len(t, replaced, 3)
	assert.Len(t, l.Installments(), 3)
	assert.Equal(t, 1, l.Installments()[0].SequenceNumber)
}

func TestNew_SortsBySequence(t *testing.T) {
	installments := []*domain.Installment{
		{SequenceNumber: 3},
		{SequenceNumber: 1},
		{SequenceNumber: 2},
	}
	l := New(uuid.New(), amortization.Terms{}, installments)

	for i, inst := range l.Installments() {
		assert.Equal(t, i+1, inst.SequenceNumber)
	}
	assert.Equal(t, 3, installments[0].SequenceNumber, "caller slice order is preserved")
}

func TestPendingAndTotals(t *testing.T) {
	l := newLedger(t, "12000", "12", 12, amortization.German)
	payDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	settled, err := l.Settle(2, payDate)
	require.NoError(t, err)
	require.Len(t, settled, 2)
	assert.Equal(t, 1, settled[0].SequenceNumber)
	assert.Equal(t, 2, settled[1].SequenceNumber)
	assert.Equal(t, payDate, *settled[0].SettledDate)

	pending := l.Pending()
	require.Len(t, pending, 10)
	assert.Equal(t, 3, pending[0].SequenceNumber)

	// 1120 + 1110
	assert.True(t, l.TotalSettled().Round(2).Equal(d("2230")))
	assert.True(t, l.TotalSettled().Add(l.TotalPending()).Equal(l.Totals(start).TotalPayable))
}

func TestSettle_FIFO(t *testing.T) {
	l := newLedger(t, "9000", "10", 9, amortization.French)

	_, err := l.Settle(3, start)
	require.NoError(t, err)
	before := l.Pending()

	settled, err := l.Settle(4, start.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, before[:4], settled)
	for _, inst := range l.Pending() {
		assert.Greater(t, inst.SequenceNumber, settled[3].SequenceNumber)
	}
	assert.NoError(t, l.Validate())
}

func TestSettle_Errors(t *testing.T) {
	l := newLedger(t, "3000", "10", 3, amortization.French)

	_, err := l.Settle(4, start)
	assert.True(t, errors.Is(err, customError.ErrInsufficientInstallments))

	_, err = l.Settle(0, start)
	assert.True(t, errors.Is(err, customError.ErrInvalidArgument))

	assert.Empty(t, l.Settled(), "failed settlement must not touch the ledger")
}

func TestSettleAll(t *testing.T) {
	l := newLedger(t, "3000", "10", 6, amortization.American)
	_, err := l.Settle(1, start)
	require.NoError(t, err)

	settled := l.SettleAll(start)
	assert.Len(t, settled, 5)
	assert.Empty(t, l.Pending())
	assert.True(t, l.TotalPending().IsZero())
}

func TestRecalculateRemaining(t *testing.T) {
	for _, method := range amortization.Methods {
		t.Run(string(method), func(t *testing.T) {
			l := newLedger(t, "12000", "12", 12, method)
			_, err := l.Settle(4, start)
			require.NoError(t, err)
			settledBefore := domain.CloneInstallments(l.Settled())

			newBalance := d("5000")
			asOf := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
			changed, err := l.RecalculateRemaining(newBalance, asOf)
			require.NoError(t, err)
			require.Len(t, changed, 8)

			sumPrincipal := decimal.Zero
			for i, inst := range changed {
				assert.Equal(t, 5+i, inst.SequenceNumber, "recalculated rows keep their positions")
				assert.Equal(t, utils.AddMonths(asOf, i+1), inst.DueDate)
				sumPrincipal = sumPrincipal.Add(inst.PrincipalPortion)
			}
			assert.True(t, utils.NearlyEqual(sumPrincipal, newBalance))
			assert.True(t, changed[0].OpeningBalance.Equal(newBalance))
			assert.Len(t, l.Pending(), 8)
			assert.Equal(t, settledBefore, l.Settled())
			assert.NoError(t, l.Validate())
		})
	}
}

func TestRecalculateRemaining_NothingPending(t *testing.T) {
	l := newLedger(t, "1000", "12", 2, amortization.French)
	l.SettleAll(start)

	_, err := l.RecalculateRemaining(d("10"), start)
	assert.True(t, errors.Is(err, customError.ErrInsufficientTerm))
}

func TestRecalculateRemaining_InvalidBalance(t *testing.T) {
	l := newLedger(t, "1000", "12", 2, amortization.French)

	_, err := l.RecalculateRemaining(decimal.Zero, start)
	assert.True(t, errors.Is(err, customError.ErrInvalidArgument))
}

func TestTotals(t *testing.T) {
	l := newLedger(t, "12000", "12", 12, amortization.American)
	_, err := l.Settle(1, start)
	require.NoError(t, err)

	// Installments 2 (Mar 10) and 3 (Apr 10) are past due on Apr 20.
	now := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	totals := l.Totals(now)

	assert.True(t, totals.TotalInterest.Equal(d("1440")))
	assert.True(t, totals.TotalPayable.Equal(d("13440")))
	assert.True(t, totals.TotalPaid.Equal(d("120")))
	assert.True(t, totals.TotalPending.Equal(d("13320")))
	assert.True(t, totals.TotalOverdue.Equal(d("240")))
	assert.Equal(t, 2, totals.OverdueCount)
	assert.Equal(t, 11, totals.PendingCount)
	assert.Equal(t, 1, totals.SettledCount)
	require.NotNil(t, totals.NextDue)
	assert.Equal(t, 2, totals.NextDue.SequenceNumber)
	assert.True(t, l.HasOverdue(now))
	assert.False(t, l.HasOverdue(start))
}

func TestValidate_DetectsBrokenLedger(t *testing.T) {
	t.Run("gap in sequence", func(t *testing.T) {
		l := newLedger(t, "3000", "12", 3, amortization.German)
		l.Installments()[2].SequenceNumber = 4
		assert.True(t, errors.Is(l.Validate(), customError.ErrInvalidState))
	})

	t.Run("broken chain", func(t *testing.T) {
		l := newLedger(t, "3000", "12", 3, amortization.German)
		l.Installments()[1].OpeningBalance = d("1")
		assert.Error(t, l.Validate())
	})

	t.Run("settled after pending", func(t *testing.T) {
		l := newLedger(t, "3000", "12", 3, amortization.German)
		settledAt := start
		l.Installments()[2].Settled = true
		l.Installments()[2].SettledDate = &settledAt
		assert.Error(t, l.Validate())
	})
}

func TestOutstandingPrincipal(t *testing.T) {
	l := newLedger(t, "12000", "12", 12, amortization.German)
	assert.True(t, l.OutstandingPrincipal().Equal(d("12000")))

	_, err := l.Settle(3, start)
	require.NoError(t, err)
	assert.True(t, l.OutstandingPrincipal().Equal(d("9000")))

	l.SettleAll(start)
	assert.True(t, l.OutstandingPrincipal().IsZero())
}
