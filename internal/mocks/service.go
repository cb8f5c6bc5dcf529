package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/microcredit-engine/internal/domain"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateLoanResponse), args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanService) GetSummary(ctx context.Context, loanID uuid.UUID) (*domain.LoanSummary, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanSummary), args.Error(1)
}

func (m *MockLoanService) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockLoanService) RecalculateForConfigurationChange(ctx context.Context, loanID uuid.UUID, request *domain.UpdateTermsRequest) (*domain.CreateLoanResponse, error) {
	args := m.Called(ctx, loanID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateLoanResponse), args.Error(1)
}

func (m *MockLoanService) RespondApproval(ctx context.Context, loanID uuid.UUID, decision domain.ApprovalStatus) (*domain.Loan, error) {
	args := m.Called(ctx, loanID, decision)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) Activate(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) OverrideState(ctx context.Context, loanID uuid.UUID, state domain.LoanState) (*domain.Loan, error) {
	args := m.Called(ctx, loanID, state)
	return loanOrNil(args.Get(0)), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) ApplyPayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.PaymentResult, error) {
	args := m.Called(ctx, loanID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}

type MockConfigurationService struct {
	mock.Mock
}

func (m *MockConfigurationService) CreateConfiguration(ctx context.Context, request *domain.ConfigurationRequest) (*domain.LoanConfiguration, error) {
	args := m.Called(ctx, request)
	return configurationOrNil(args.Get(0)), args.Error(1)
}

func (m *MockConfigurationService) GetConfiguration(ctx context.Context, id uuid.UUID) (*domain.LoanConfiguration, error) {
	args := m.Called(ctx, id)
	return configurationOrNil(args.Get(0)), args.Error(1)
}

func (m *MockConfigurationService) ListConfigurations(ctx context.Context) ([]*domain.LoanConfiguration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanConfiguration), args.Error(1)
}

func (m *MockConfigurationService) UpdateConfiguration(ctx context.Context, id uuid.UUID, request *domain.ConfigurationRequest) (*domain.LoanConfiguration, error) {
	args := m.Called(ctx, id, request)
	return configurationOrNil(args.Get(0)), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) OverdueLoans(ctx context.Context, now time.Time) ([]*domain.OverdueLoan, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OverdueLoan), args.Error(1)
}

func (m *MockReportService) UpcomingInstallments(ctx context.Context, now time.Time, days int) ([]*domain.Installment, error) {
	args := m.Called(ctx, now, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func loanOrNil(v interface{}) *domain.Loan {
	if v == nil {
		return nil
	}
	return v.(*domain.Loan)
}

func configurationOrNil(v interface{}) *domain.LoanConfiguration {
	if v == nil {
		return nil
	}
	return v.(*domain.LoanConfiguration)
}
