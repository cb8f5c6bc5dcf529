package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/microcredit-engine/internal/domain"
)

// LoanRepository defines the interface for loan and installment data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// Update writes the loan header if its version is still current, then bumps loan.Version
	Update(ctx context.Context, loan *domain.Loan) error

	// List returns loans matching filter, newest first
	List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error)

	// CreateSchedule creates installment rows
	CreateSchedule(ctx context.Context, installments []*domain.Installment) error

	// GetScheduleByLoanID retrieves a loan's installments ordered by sequence number
	GetScheduleByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)

	// ReplaceSchedule deletes every installment of the loan and inserts the given ones
	ReplaceSchedule(ctx context.Context, loanID uuid.UUID, installments []*domain.Installment) error

	// UpdateInstallments writes back installments changed by a payment
	UpdateInstallments(ctx context.Context, installments []*domain.Installment) error

	// GetOverdueSchedules gets pending installments of payable loans that were due before currentDate
	GetOverdueSchedules(ctx context.Context, currentDate time.Time) ([]*domain.Installment, error)

	// GetUpcomingSchedules gets pending installments of payable loans due in [from, to)
	GetUpcomingSchedules(ctx context.Context, from, to time.Time) ([]*domain.Installment, error)
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByLoanID retrieves all payments for a loan in the order they were made
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)

	// GetTotalPaid sums every payment received for a loan
	GetTotalPaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)

	// GetLatestPayment gets the most recent payment for a loan, or nil when there is none
	GetLatestPayment(ctx context.Context, loanID uuid.UUID) (*domain.Payment, error)
}

// ConfigurationRepository defines the interface for loan configuration data operations
type ConfigurationRepository interface {
	Create(ctx context.Context, cfg *domain.LoanConfiguration) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanConfiguration, error)
	List(ctx context.Context) ([]*domain.LoanConfiguration, error)
	Update(ctx context.Context, cfg *domain.LoanConfiguration) error
}

// Transactor runs fn inside a database transaction. Repositories called with the ctx passed to fn
// join that transaction. Nested calls reuse the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes work on a key across goroutines (and processes, for the redis implementation).
type Locker interface {
	// Lock blocks until the key is held or the wait times out. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ScheduleCache caches installment sets per loan, tagged with the loan version they were read at.
// An entry whose version differs from the one asked for is a miss.
type ScheduleCache interface {
	Get(ctx context.Context, loanID uuid.UUID, version int) ([]*domain.Installment, bool, error)
	Set(ctx context.Context, loanID uuid.UUID, version int, installments []*domain.Installment) error
	Invalidate(ctx context.Context, loanID uuid.UUID) error
}
