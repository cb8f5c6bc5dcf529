package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/ledger"
	"github.com/segyhp/microcredit-engine/internal/lifecycle"
	"github.com/segyhp/microcredit-engine/internal/repository"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/logger"
	"github.com/segyhp/microcredit-engine/pkg/utils"
)

// maxTermMonths bounds schedule size; fifty years of monthly installments.
const maxTermMonths = 600

type LoanService struct {
	loanGuard
	paymentRepo repository.PaymentRepository
	configRepo  repository.ConfigurationRepository
	now         func() time.Time
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	configRepo repository.ConfigurationRepository,
	tx repository.Transactor,
	locker repository.Locker,
	cache repository.ScheduleCache,
	log *zap.Logger,
) *LoanService {
	return &LoanService{
		loanGuard: loanGuard{
			loans:  loanRepo,
			tx:     tx,
			locker: locker,
			cache:  cache,
			logger: logger.OrNop(log),
		},
		paymentRepo: paymentRepo,
		configRepo:  configRepo,
		now:         time.Now,
	}
}

// CreateLoan creates a draft loan and its installment schedule from a configuration.
// The configuration's rate and method are copied onto the loan.
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.CreateLoanResponse, error) {
	if request.ClientID == "" {
		return nil, customError.WrapInvalidArgument("client_id is required")
	}
	if err := checkTerms(request.Principal, request.TermMonths); err != nil {
		return nil, err
	}

	cfg, err := s.configRepo.GetByID(ctx, request.ConfigurationID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	startDate := utils.TruncateToDay(now)
	if request.StartDate != nil {
		startDate = request.StartDate.UTC()
	}

	loan := &domain.Loan{
		ID:                 uuid.New(),
		ClientID:           request.ClientID,
		ConfigurationID:    cfg.ID,
		Principal:          request.Principal,
		AnnualInterestRate: cfg.AnnualInterestRate,
		Method:             cfg.Method,
		TermMonths:         request.TermMonths,
		StartDate:          startDate,
		AmountPaid:         decimal.Zero,
		State:              domain.LoanStateDraft,
		Approval:           domain.ApprovalPending,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	installments, err := s.buildSchedule(loan)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.loans.Create(ctx, loan); err != nil {
			return err
		}
		return s.loans.CreateSchedule(ctx, installments)
	})
	if err != nil {
		s.logger.Error("loan creation failed",
			zap.String("op", "service.CreateLoan"),
			zap.String("client_id", request.ClientID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("loan created",
		zap.String("op", "service.CreateLoan"),
		zap.String("loan_id", loan.ID.String()),
		zap.String("method", loan.Method.String()),
		zap.Int("term_months", loan.TermMonths),
	)

	return &domain.CreateLoanResponse{Loan: loan, Schedule: installments}, nil
}

// buildSchedule computes the loan's schedule and sets its monthly installment.
func (s *LoanService) buildSchedule(loan *domain.Loan) ([]*domain.Installment, error) {
	periods, err := loan.Terms().Schedule(loan.Principal, loan.TermMonths, loan.StartDate)
	if err != nil {
		return nil, err
	}

	l := ledger.New(loan.ID, loan.Terms(), nil)
	l.Now = func() time.Time { return s.now().UTC() }
	installments := l.Materialize(periods)

	loan.MonthlyInstallment = periods[0].Amount
	return installments, nil
}

func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.loans.GetByID(ctx, loanID)
}

// ListLoans lists loans by stored state. Filtering by overdue checks each validated or active
// loan's schedule against the current date.
func (s *LoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	if filter.State == "" {
		return s.loans.List(ctx, filter)
	}
	if filter.State != domain.LoanStateOverdue {
		if !filter.State.Valid() {
			return nil, customError.WrapInvalidArgument(fmt.Sprintf("unknown loan state %q", filter.State))
		}
		return s.loans.List(ctx, filter)
	}

	loans, err := s.loans.List(ctx, domain.LoanFilter{})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	overdue := []*domain.Loan{}
	for _, loan := range loans {
		if loan.State != domain.LoanStateValidated && loan.State != domain.LoanStateActive {
			continue
		}
		installments, err := s.schedule(ctx, loan, "service.ListLoans")
		if err != nil {
			return nil, err
		}
		if lifecycle.Effective(loan, ledger.New(loan.ID, loan.Terms(), installments), now) == domain.LoanStateOverdue {
			overdue = append(overdue, loan)
		}
	}
	return overdue, nil
}

// GetSchedule returns the loan's installments in sequence order.
func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.Installment, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.schedule(ctx, loan, "service.GetSchedule")
}

// GetSummary projects the loan's totals and effective state as of now.
func (s *LoanService) GetSummary(ctx context.Context, loanID uuid.UUID) (*domain.LoanSummary, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	installments, err := s.schedule(ctx, loan, "service.GetSummary")
	if err != nil {
		return nil, err
	}

	received, err := s.paymentRepo.GetTotalPaid(ctx, loanID)
	if err != nil {
		return nil, err
	}

	latest, err := s.paymentRepo.GetLatestPayment(ctx, loanID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	l := ledger.New(loan.ID, loan.Terms(), installments)
	totals := l.Totals(now)

	summary := &domain.LoanSummary{
		Loan:           loan,
		EffectiveState: lifecycle.Effective(loan, l, now),
		Outstanding:    l.OutstandingPrincipal(),
		TotalInterest:  totals.TotalInterest,
		TotalPayable:   totals.TotalPayable,
		TotalPaid:      totals.TotalPaid,
		TotalPending:   totals.TotalPending,
		TotalOverdue:   totals.TotalOverdue,
		TotalReceived:  received,
		OverdueCount:   totals.OverdueCount,
		PendingCount:   totals.PendingCount,
		SettledCount:   totals.SettledCount,
		NextDue:        totals.NextDue,
	}
	if latest != nil {
		paidAt := latest.PaymentDate
		summary.LastPaymentDate = &paidAt
	}
	return summary, nil
}

// ListPayments returns the loan's payment history.
func (s *LoanService) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByLoanID(ctx, loanID)
}

// RecalculateForConfigurationChange replaces the loan's terms and regenerates its whole schedule. It is refused once any
// money has been applied to the loan.
func (s *LoanService) RecalculateForConfigurationChange(ctx context.Context, loanID uuid.UUID, request *domain.UpdateTermsRequest) (*domain.CreateLoanResponse, error) {
	if request.Empty() {
		return nil, customError.WrapInvalidArgument("no terms to update")
	}

	var response *domain.CreateLoanResponse
	err := s.withLoan(ctx, loanID, "service.RecalculateForConfigurationChange", func(ctx context.Context, loan *domain.Loan) error {
		if loan.State == domain.LoanStatePaid || loan.AmountPaid.IsPositive() {
			return customError.WrapScheduleLocked(loan.ID.String())
		}

		if request.Principal != nil {
			loan.Principal = *request.Principal
		}
		if request.TermMonths != nil {
			loan.TermMonths = *request.TermMonths
		}
		if request.StartDate != nil {
			loan.StartDate = request.StartDate.UTC()
		}
		if request.ConfigurationID != nil {
			cfg, err := s.configRepo.GetByID(ctx, *request.ConfigurationID)
			if err != nil {
				return err
			}
			loan.ConfigurationID = cfg.ID
			loan.AnnualInterestRate = cfg.AnnualInterestRate
			loan.Method = cfg.Method
		}
		if err := checkTerms(loan.Principal, loan.TermMonths); err != nil {
			return err
		}

		installments, err := s.buildSchedule(loan)
		if err != nil {
			return err
		}
		if err := s.loans.ReplaceSchedule(ctx, loan.ID, installments); err != nil {
			return err
		}
		if err := s.loans.Update(ctx, loan); err != nil {
			return err
		}

		response = &domain.CreateLoanResponse{Loan: loan, Schedule: installments}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loan terms updated",
		zap.String("op", "service.RecalculateForConfigurationChange"),
		zap.String("loan_id", loanID.String()),
		zap.Int("installments", len(response.Schedule)),
	)
	return response, nil
}

// RespondApproval records the borrower's decision on the loan offer.
func (s *LoanService) RespondApproval(ctx context.Context, loanID uuid.UUID, decision domain.ApprovalStatus) (*domain.Loan, error) {
	return s.transition(ctx, loanID, "service.RespondApproval", func(loan *domain.Loan) error {
		return lifecycle.ApplyApproval(loan, decision, s.now().UTC())
	})
}

// Activate marks a validated loan as disbursed.
func (s *LoanService) Activate(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.transition(ctx, loanID, "service.Activate", lifecycle.Activate)
}

// OverrideState relabels the loan without touching its schedule or payments.
func (s *LoanService) OverrideState(ctx context.Context, loanID uuid.UUID, state domain.LoanState) (*domain.Loan, error) {
	return s.transition(ctx, loanID, "service.OverrideState", func(loan *domain.Loan) error {
		return lifecycle.Override(loan, state)
	})
}

func (s *LoanService) transition(ctx context.Context, loanID uuid.UUID, op string, apply func(loan *domain.Loan) error) (*domain.Loan, error) {
	var updated *domain.Loan
	err := s.withLoan(ctx, loanID, op, func(ctx context.Context, loan *domain.Loan) error {
		from := loan.State
		if err := apply(loan); err != nil {
			return err
		}
		if err := s.loans.Update(ctx, loan); err != nil {
			return err
		}

		s.logger.Info("loan state changed",
			zap.String("op", op),
			zap.String("loan_id", loan.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(loan.State)),
		)
		updated = loan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func checkTerms(principal decimal.Decimal, termMonths int) error {
	if !principal.IsPositive() {
		return customError.WrapInvalidArgument(fmt.Sprintf("principal must be greater than 0, got %s", principal))
	}
	if termMonths <= 0 || termMonths > maxTermMonths {
		return customError.WrapInvalidArgument(fmt.Sprintf("term_months must be between 1 and %d, got %d", maxTermMonths, termMonths))
	}
	return nil
}
