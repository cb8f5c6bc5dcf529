package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/allocation"
	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/ledger"
	"github.com/segyhp/microcredit-engine/internal/repository"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/logger"
)

type PaymentService struct {
	loanGuard
	paymentRepo repository.PaymentRepository
	allocator   *allocation.Allocator
	now         func() time.Time
}

func NewPaymentService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	tx repository.Transactor,
	locker repository.Locker,
	cache repository.ScheduleCache,
	allocator *allocation.Allocator,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		loanGuard: loanGuard{
			loans:  loanRepo,
			tx:     tx,
			locker: locker,
			cache:  cache,
			logger: logger.OrNop(log),
		},
		paymentRepo: paymentRepo,
		allocator:   allocator,
		now:         time.Now,
	}
}

// ApplyPayment applies a payment to the loan. The loan header, its touched installments and the
// payment records are written in one transaction; a rejected payment writes nothing.
func (s *PaymentService) ApplyPayment(ctx context.Context, loanID uuid.UUID, request *domain.MakePaymentRequest) (*domain.PaymentResult, error) {
	req, err := s.toRequest(request)
	if err != nil {
		return nil, err
	}

	var result *allocation.Result
	err = s.withLoan(ctx, loanID, "service.ApplyPayment", func(ctx context.Context, loan *domain.Loan) error {
		installments, err := s.loans.GetScheduleByLoanID(ctx, loan.ID)
		if err != nil {
			return err
		}

		l := ledger.New(loan.ID, loan.Terms(), installments)
		applied, err := s.allocator.Apply(loan, l, req)
		if err != nil {
			return err
		}
		if err := l.Validate(); err != nil {
			return err
		}

		for _, payment := range applied.Payments {
			if err := s.paymentRepo.Create(ctx, payment); err != nil {
				return err
			}
		}
		if err := s.loans.UpdateInstallments(ctx, applied.Installments); err != nil {
			return err
		}
		if err := s.loans.Update(ctx, applied.Loan); err != nil {
			return err
		}

		result = applied
		return nil
	})
	if err != nil {
		s.logger.Warn("payment rejected",
			zap.String("op", "service.ApplyPayment"),
			zap.String("loan_id", loanID.String()),
			zap.String("amount", request.Amount.String()),
			zap.String("code", customError.CodeOf(err)),
			zap.Bool("retryable", customError.Retryable(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("payment applied",
		zap.String("op", "service.ApplyPayment"),
		zap.String("loan_id", loanID.String()),
		zap.String("amount", request.Amount.String()),
		zap.Int("payments", len(result.Payments)),
		zap.Bool("recalculated", result.Recalculated),
		zap.String("state", string(result.Loan.State)),
	)

	return &domain.PaymentResult{
		Payments:     result.Payments,
		Loan:         result.Loan,
		Installments: result.Installments,
	}, nil
}

func (s *PaymentService) toRequest(request *domain.MakePaymentRequest) (allocation.Request, error) {
	date := s.now().UTC()
	if request.PaymentDate != nil {
		date = request.PaymentDate.UTC()
	}

	req := allocation.Request{
		Amount: request.Amount,
		Date:   date,
		Method: request.Method,
	}

	switch request.Kind {
	case domain.PaymentKindInstallmentSettlement:
		if request.InstallmentsToCover < 1 {
			return req, customError.WrapInvalidArgument("installments_to_cover must be at least 1")
		}
		req.Policy = allocation.CoverInstallments{Count: request.InstallmentsToCover}
	case domain.PaymentKindCapitalContribution:
		req.Policy = allocation.CapitalContribution{}
	default:
		return req, customError.WrapInvalidArgument(fmt.Sprintf("unknown payment kind %q", request.Kind))
	}

	switch request.Method {
	case domain.PaymentMethodCash, domain.PaymentMethodTransfer, domain.PaymentMethodCard:
	default:
		return req, customError.WrapInvalidArgument(fmt.Sprintf("unknown payment method %q", request.Method))
	}

	return req, nil
}
