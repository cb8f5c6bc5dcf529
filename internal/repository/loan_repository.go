package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/microcredit-engine/internal/domain"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

const (
	loanColumns = `id, client_id, configuration_id, principal, annual_interest_rate, method, term_months,
		start_date, monthly_installment, amount_paid, state, approval, approval_responded_at, version,
		created_at, updated_at`

	installmentColumns = `id, loan_id, sequence_number, due_date, installment_amount, principal_portion,
		interest_portion, opening_balance, closing_balance, settled, settled_date, created_at`
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (:id, :client_id, :configuration_id, :principal, :annual_interest_rate, :method, :term_months,
			:start_date, :monthly_installment, :amount_paid, :state, :approval, :approval_responded_at, :version,
			:created_at, :updated_at)
	`

	_, err := sqlx.NamedExecContext(ctx, executor(ctx, r.db), query, loan)
	return mapError(err)
}

func (r *loanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	q := executor(ctx, r.db)
	query := q.Rebind(`SELECT ` + loanColumns + ` FROM loans WHERE id = ?`)

	var loan domain.Loan
	if err := sqlx.GetContext(ctx, q, &loan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(id.String())
		}
		return nil, mapError(err)
	}

	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	q := executor(ctx, r.db)
	query := q.Rebind(`
		UPDATE loans
		SET configuration_id = ?, principal = ?, annual_interest_rate = ?, method = ?, term_months = ?,
			start_date = ?, monthly_installment = ?, amount_paid = ?, state = ?, approval = ?,
			approval_responded_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`)

	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, query,
		loan.ConfigurationID,
		loan.Principal,
		loan.AnnualInterestRate,
		loan.Method,
		loan.TermMonths,
		loan.StartDate,
		loan.MonthlyInstallment,
		loan.AmountPaid,
		loan.State,
		loan.Approval,
		loan.ApprovalRespondedAt,
		now,
		loan.ID,
		loan.Version,
	)
	if err != nil {
		return mapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if rows == 0 {
		return customError.WrapConcurrencyConflict(loan.ID.String(), fmt.Errorf("version %d is no longer current", loan.Version))
	}

	loan.Version++
	loan.UpdatedAt = now
	return nil
}

func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	q := executor(ctx, r.db)

	query := `SELECT ` + loanColumns + ` FROM loans`
	var args []interface{}
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, filter.State)
	}
	query += ` ORDER BY created_at DESC`

	loans := []*domain.Loan{}
	if err := sqlx.SelectContext(ctx, q, &loans, q.Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}

	return loans, nil
}

func (r *loanRepository) CreateSchedule(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO installments (` + installmentColumns + `)
		VALUES (:id, :loan_id, :sequence_number, :due_date, :installment_amount, :principal_portion,
			:interest_portion, :opening_balance, :closing_balance, :settled, :settled_date, :created_at)
	`

	return NewTransactor(r.db).WithinTx(ctx, func(ctx context.Context) error {
		tx := executor(ctx, r.db)
		for _, inst := range installments {
			if _, err := sqlx.NamedExecContext(ctx, tx, query, inst); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

func (r *loanRepository) GetScheduleByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	q := executor(ctx, r.db)
	query := q.Rebind(`
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE loan_id = ?
		ORDER BY sequence_number
	`)

	installments := []*domain.Installment{}
	if err := sqlx.SelectContext(ctx, q, &installments, query, loanID); err != nil {
		return nil, mapError(err)
	}

	return installments, nil
}

func (r *loanRepository) ReplaceSchedule(ctx context.Context, loanID uuid.UUID, installments []*domain.Installment) error {
	return NewTransactor(r.db).WithinTx(ctx, func(ctx context.Context) error {
		q := executor(ctx, r.db)
		if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM installments WHERE loan_id = ?`), loanID); err != nil {
			return mapError(err)
		}
		return r.CreateSchedule(ctx, installments)
	})
}

func (r *loanRepository) UpdateInstallments(ctx context.Context, installments []*domain.Installment) error {
	return NewTransactor(r.db).WithinTx(ctx, func(ctx context.Context) error {
		q := executor(ctx, r.db)
		query := q.Rebind(`
			UPDATE installments
			SET due_date = ?, installment_amount = ?, principal_portion = ?, interest_portion = ?,
				opening_balance = ?, closing_balance = ?, settled = ?, settled_date = ?
			WHERE id = ?
		`)

		for _, inst := range installments {
			res, err := q.ExecContext(ctx, query,
				inst.DueDate,
				inst.InstallmentAmount,
				inst.PrincipalPortion,
				inst.InterestPortion,
				inst.OpeningBalance,
				inst.ClosingBalance,
				inst.Settled,
				inst.SettledDate,
				inst.ID,
			)
			if err != nil {
				return mapError(err)
			}
			if rows, err := res.RowsAffected(); err != nil {
				return mapError(err)
			} else if rows == 0 {
				return customError.WrapConcurrencyConflict(inst.LoanID.String(), fmt.Errorf("installment %d was replaced", inst.SequenceNumber))
			}
		}
		return nil
	})
}

func (r *loanRepository) GetOverdueSchedules(ctx context.Context, currentDate time.Time) ([]*domain.Installment, error) {
	return r.pendingOfPayableLoans(ctx, `i.due_date < ?`, currentDate)
}

func (r *loanRepository) GetUpcomingSchedules(ctx context.Context, from, to time.Time) ([]*domain.Installment, error) {
	return r.pendingOfPayableLoans(ctx, `i.due_date >= ? AND i.due_date < ?`, from, to)
}

func (r *loanRepository) pendingOfPayableLoans(ctx context.Context, dueCondition string, args ...interface{}) ([]*domain.Installment, error) {
	q := executor(ctx, r.db)
	query := q.Rebind(`
		SELECT i.id, i.loan_id, i.sequence_number, i.due_date, i.installment_amount, i.principal_portion,
			i.interest_portion, i.opening_balance, i.closing_balance, i.settled, i.settled_date, i.created_at
		FROM installments i
		JOIN loans l ON l.id = i.loan_id
		WHERE i.settled = ? AND l.state IN (?, ?) AND ` + dueCondition + `
		ORDER BY i.due_date, i.loan_id, i.sequence_number
	`)

	params := append([]interface{}{false, domain.LoanStateValidated, domain.LoanStateActive}, args...)

	installments := []*domain.Installment{}
	if err := sqlx.SelectContext(ctx, q, &installments, query, params...); err != nil {
		return nil, mapError(err)
	}

	return installments, nil
}
