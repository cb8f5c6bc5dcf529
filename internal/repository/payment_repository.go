package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/segyhp/microcredit-engine/internal/domain"
)

const paymentColumns = `id, loan_id, amount, method, kind, payment_date, installments_covered, created_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :loan_id, :amount, :method, :kind, :payment_date, :installments_covered, :created_at)
	`

	_, err := sqlx.NamedExecContext(ctx, executor(ctx, r.db), query, payment)
	return mapError(err)
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	q := executor(ctx, r.db)
	query := q.Rebind(`
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = ?
		ORDER BY payment_date, created_at
	`)

	payments := []*domain.Payment{}
	if err := sqlx.SelectContext(ctx, q, &payments, query, loanID); err != nil {
		return nil, mapError(err)
	}

	return payments, nil
}

// GetTotalPaid adds the amounts up in Go: SQLite stores them as text and SUM would go through floats.
func (r *paymentRepository) GetTotalPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	q := executor(ctx, r.db)

	var amounts []decimal.Decimal
	if err := sqlx.SelectContext(ctx, q, &amounts, q.Rebind(`SELECT amount FROM payments WHERE loan_id = ?`), loanID); err != nil {
		return decimal.Zero, mapError(err)
	}

	return decimal.Sum(decimal.Zero, amounts...), nil
}

func (r *paymentRepository) GetLatestPayment(ctx context.Context, loanID uuid.UUID) (*domain.Payment, error) {
	q := executor(ctx, r.db)
	query := q.Rebind(`
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = ?
		ORDER BY payment_date DESC, created_at DESC
		LIMIT 1
	`)

	var payment domain.Payment
	if err := sqlx.GetContext(ctx, q, &payment, query, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}

	return &payment, nil
}
