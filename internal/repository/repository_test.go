package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/pkg/amortization"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

var (
	ctx   = context.Background()
	start = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	return db
}

func seedConfiguration(t *testing.T, db *sqlx.DB) *domain.LoanConfiguration {
	t.Helper()
	cfg := &domain.LoanConfiguration{
		ID:                 uuid.New(),
		Name:               "Microcredito 12%",
		AnnualInterestRate: decimal.NewFromInt(12),
		Method:             amortization.French,
		CreatedAt:          start,
		UpdatedAt:          start,
	}
	require.NoError(t, NewConfigurationRepository(db).Create(ctx, cfg))
	return cfg
}

func seedLoan(t *testing.T, db *sqlx.DB, state domain.LoanState) (*domain.Loan, []*domain.Installment) {
	t.Helper()
	cfg := seedConfiguration(t, db)

	loan := &domain.Loan{
		ID:                 uuid.New(),
		ClientID:           "client-1",
		ConfigurationID:    cfg.ID,
		Principal:          decimal.NewFromInt(12000),
		AnnualInterestRate: cfg.AnnualInterestRate,
		Method:             cfg.Method,
		TermMonths:         12,
		StartDate:          start,
		AmountPaid:         decimal.Zero,
		State:              state,
		Approval:           domain.ApprovalPending,
		Version:            1,
		CreatedAt:          start,
		UpdatedAt:          start,
	}

	periods, err := loan.Terms().Schedule(loan.Principal, loan.TermMonths, loan.StartDate)
	require.NoError(t, err)
	loan.MonthlyInstallment = periods[0].Amount

	installments := make([]*domain.Installment, len(periods))
	for i, p := range periods {
		installments[i] = &domain.Installment{
			ID:                uuid.New(),
			LoanID:            loan.ID,
			SequenceNumber:    p.Number,
			DueDate:           p.DueDate,
			InstallmentAmount: p.Amount,
			PrincipalPortion:  p.Principal,
			InterestPortion:   p.Interest,
			OpeningBalance:    p.OpeningBalance,
			ClosingBalance:    p.ClosingBalance,
			CreatedAt:         start,
		}
	}

	repo := NewLoanRepository(db)
	require.NoError(t, repo.Create(ctx, loan))
	require.NoError(t, repo.CreateSchedule(ctx, installments))
	return loan, installments
}

func TestLoanRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	loan, _ := seedLoan(t, db, domain.LoanStateDraft)

	got, err := NewLoanRepository(db).GetByID(ctx, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, loan.ID, got.ID)
	assert.Equal(t, loan.ConfigurationID, got.ConfigurationID)
	assert.Equal(t, amortization.French, got.Method)
	assert.Equal(t, domain.LoanStateDraft, got.State)
	assert.True(t, got.Principal.Equal(loan.Principal))
	assert.True(t, got.MonthlyInstallment.Equal(loan.MonthlyInstallment), "full precision survives the round trip")
	assert.True(t, got.StartDate.Equal(start))
	assert.Nil(t, got.ApprovalRespondedAt)
	assert.Equal(t, 1, got.Version)
}

func TestLoanRepository_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := NewLoanRepository(db).GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, customError.ErrLoanNotFound))
}

func TestLoanRepository_UpdateChecksVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewLoanRepository(db)
	loan, _ := seedLoan(t, db, domain.LoanStateActive)

	stale := loan.Clone()

	loan.AmountPaid = decimal.RequireFromString("1066.19")
	require.NoError(t, repo.Update(ctx, loan))
	assert.Equal(t, 2, loan.Version)

	stale.State = domain.LoanStateDraft
	err := repo.Update(ctx, stale)
	assert.True(t, errors.Is(err, customError.ErrConcurrencyConflict))
	assert.Equal(t, customError.ErrCodeConcurrencyConflict, customError.CodeOf(err))

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStateActive, got.State)
	assert.True(t, got.AmountPaid.Equal(loan.AmountPaid))
	assert.Equal(t, 2, got.Version)
}

func TestLoanRepository_List(t *testing.T) {
	db := newTestDB(t)
	repo := NewLoanRepository(db)
	seedLoan(t, db, domain.LoanStateDraft)
	active, _ := seedLoan(t, db, domain.LoanStateActive)

	all, err := repo.List(ctx, domain.LoanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := repo.List(ctx, domain.LoanFilter{State: domain.LoanStateActive})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, active.ID, filtered[0].ID)
}

func TestLoanRepository_Schedule(t *testing.T) {
	db := newTestDB(t)
	repo := NewLoanRepository(db)
	loan, installments := seedLoan(t, db, domain.LoanStateActive)

	got, err := repo.GetScheduleByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, got, 12)
	for i, inst := range got {
		assert.Equal(t, i+1, inst.SequenceNumber)
		assert.True(t, inst.InstallmentAmount.Equal(installments[i].InstallmentAmount))
		assert.True(t, inst.ClosingBalance.Equal(installments[i].ClosingBalance))
		assert.True(t, inst.DueDate.Equal(installments[i].DueDate))
		assert.False(t, inst.Settled)
	}

	settledAt := start.AddDate(0, 1, 0)
	got[0].Settled = true
	got[0].SettledDate = &settledAt
	require.NoError(t, repo.UpdateInstallments(ctx, got[:1]))

	reloaded, err := repo.GetScheduleByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, reloaded[0].Settled)
	require.NotNil(t, reloaded[0].SettledDate)
	assert.True(t, reloaded[0].SettledDate.Equal(settledAt))
	assert.False(t, reloaded[1].Settled)
}

func TestLoanRepository_ReplaceSchedule(t *testing.T) {
	db := newTestDB(t)
	repo := NewLoanRepository(db)
	loan, installments := seedLoan(t, db, domain.LoanStateDraft)

	replacement := []*domain.Installment{installments[0].Clone()}
	replacement[0].ID = uuid.New()
	require.NoError(t, repo.ReplaceSchedule(ctx, loan.ID, replacement))

	got, err := repo.GetScheduleByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, replacement[0].ID, got[0].ID)

	// Rows from the old schedule are gone.
	err = repo.UpdateInstallments(ctx, installments[1:2])
	assert.True(t, errors.Is(err, customError.ErrConcurrencyConflict))
}

func TestLoanRepository_OverdueAndUpcoming(t *testing.T) {
	db := newTestDB(t)
	repo := NewLoanRepository(db)
	active, installments := seedLoan(t, db, domain.LoanStateActive)
	seedLoan(t, db, domain.LoanStateDraft)

	settledAt := start
	installments[0].Settled = true
	installments[0].SettledDate = &settledAt
	require.NoError(t, repo.UpdateInstallments(ctx, installments[:1]))

	// Due dates are the 10th of each month from February.
	now := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	overdue, err := repo.GetOverdueSchedules(ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	for _, inst := range overdue {
		assert.Equal(t, active.ID, inst.LoanID)
	}
	assert.Equal(t, 2, overdue[0].SequenceNumber)

	upcoming, err := repo.GetUpcomingSchedules(ctx, now, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, 4, upcoming[0].SequenceNumber)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	repo := NewLoanRepository(db)
	tx := NewTransactor(db)
	loan, _ := seedLoan(t, db, domain.LoanStateActive)

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		loan.State = domain.LoanStatePaid
		if err := repo.Update(ctx, loan); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStateActive, got.State)
	assert.Equal(t, 1, got.Version)
}

func TestTransactor_Commits(t *testing.T) {
	db := newTestDB(t)
	cfg := seedConfiguration(t, db)
	payments := NewPaymentRepository(db)
	loans := NewLoanRepository(db)

	loan := &domain.Loan{
		ID: uuid.New(), ClientID: "c", ConfigurationID: cfg.ID, Principal: decimal.NewFromInt(100),
		AnnualInterestRate: decimal.NewFromInt(12), Method: amortization.German, TermMonths: 1,
		StartDate: start, MonthlyInstallment: decimal.NewFromInt(101), AmountPaid: decimal.Zero,
		State: domain.LoanStateActive, Approval: domain.ApprovalApproved, Version: 1, CreatedAt: start, UpdatedAt: start,
	}

	err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
		if err := loans.Create(ctx, loan); err != nil {
			return err
		}
		return payments.Create(ctx, &domain.Payment{
			ID: uuid.New(), LoanID: loan.ID, Amount: decimal.NewFromInt(101), Method: domain.PaymentMethodCash,
			Kind: domain.PaymentKindInstallmentSettlement, PaymentDate: start, InstallmentsCovered: 1, CreatedAt: start,
		})
	})
	require.NoError(t, err)

	total, err := payments.GetTotalPaid(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(101)))
}

func TestPaymentRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentRepository(db)
	loan, _ := seedLoan(t, db, domain.LoanStateActive)

	latest, err := repo.GetLatestPayment(ctx, loan.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	amounts := []string{"1066.1854", "500", "0.0146"}
	for i, a := range amounts {
		require.NoError(t, repo.Create(ctx, &domain.Payment{
			ID:          uuid.New(),
			LoanID:      loan.ID,
			Amount:      decimal.RequireFromString(a),
			Method:      domain.PaymentMethodTransfer,
			Kind:        domain.PaymentKindCapitalContribution,
			PaymentDate: start.AddDate(0, i+1, 0),
			CreatedAt:   start,
		}))
	}

	payments, err := repo.GetByLoanID(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.True(t, payments[0].Amount.Equal(decimal.RequireFromString("1066.1854")))
	assert.Equal(t, domain.PaymentKindCapitalContribution, payments[0].Kind)

	total, err := repo.GetTotalPaid(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1566.2")), total.String())

	latest, err = repo.GetLatestPayment(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.PaymentDate.Equal(start.AddDate(0, 3, 0)))
}

func TestConfigurationRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewConfigurationRepository(db)
	cfg := seedConfiguration(t, db)

	got, err := repo.GetByID(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, got.Name)
	assert.True(t, got.AnnualInterestRate.Equal(cfg.AnnualInterestRate))

	got.AnnualInterestRate = decimal.NewFromInt(18)
	got.Method = amortization.German
	got.UpdatedAt = start.AddDate(0, 0, 1)
	require.NoError(t, repo.Update(ctx, got))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, amortization.German, list[0].Method)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, customError.ErrConfigurationNotFound))

	missing := &domain.LoanConfiguration{ID: uuid.New(), Name: "x", AnnualInterestRate: decimal.NewFromInt(1), Method: amortization.French}
	assert.True(t, errors.Is(repo.Update(ctx, missing), customError.ErrConfigurationNotFound))
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, Migrate(ctx, db))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(ctx, "mysql", "")
	assert.Error(t, err)
}
