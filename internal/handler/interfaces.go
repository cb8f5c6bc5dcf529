package handler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/microcredit-engine/internal/domain"
)

type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error)
	GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error)
	GetSummary(ctx context.Context, loanID uuid.UUID) (*domain.LoanSummary, error)
	ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error)
	RecalculateForConfigurationChange(ctx context.Context, loanID uuid.UUID, request *domain.UpdateTermsRequest) (*domain.CreateLoanResponse, error)
	RespondApproval(ctx context.Context, loanID uuid.UUID, decision domain.ApprovalStatus) (*domain.Loan, error)
	Activate(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	OverrideState(ctx context.Context, loanID uuid.UUID, state domain.LoanState) (*domain.Loan, error)
}

type PaymentService interface {
	ApplyPayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.PaymentResult, error)
}

type ConfigurationService interface {
	CreateConfiguration(ctx context.Context, request *domain.ConfigurationRequest) (*domain.LoanConfiguration, error)
	GetConfiguration(ctx context.Context, id uuid.UUID) (*domain.LoanConfiguration, error)
	ListConfigurations(ctx context.Context) ([]*domain.LoanConfiguration, error)
	UpdateConfiguration(ctx context.Context, id uuid.UUID, request *domain.ConfigurationRequest) (*domain.LoanConfiguration, error)
}

type ReportService interface {
	OverdueLoans(ctx context.Context, now time.Time) ([]*domain.OverdueLoan, error)
	UpcomingInstallments(ctx context.Context, now time.Time, days int) ([]*domain.Installment, error)
}
