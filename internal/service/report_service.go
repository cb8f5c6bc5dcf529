package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/repository"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/logger"
	"github.com/segyhp/microcredit-engine/pkg/utils"
)

// ReportService answers portfolio-wide questions for the scheduler and the API.
type ReportService struct {
	loans  repository.LoanRepository
	logger *zap.Logger
}

func NewReportService(loanRepo repository.LoanRepository, log *zap.Logger) *ReportService {
	return &ReportService{loans: loanRepo, logger: logger.OrNop(log)}
}

// OverdueLoans groups every past-due pending installment by loan, oldest debt first.
func (s *ReportService) OverdueLoans(ctx context.Context, now time.Time) ([]*domain.OverdueLoan, error) {
	installments, err := s.loans.GetOverdueSchedules(ctx, utils.TruncateToDay(now.UTC()))
	if err != nil {
		return nil, err
	}

	byLoan := map[uuid.UUID]*domain.OverdueLoan{}
	for _, inst := range installments {
		entry, ok := byLoan[inst.LoanID]
		if !ok {
			entry = &domain.OverdueLoan{
				LoanID:        inst.LoanID,
				TotalOverdue:  decimal.Zero,
				OldestDueDate: inst.DueDate,
			}
			byLoan[inst.LoanID] = entry
		}
		entry.OverdueCount++
		entry.TotalOverdue = entry.TotalOverdue.Add(inst.InstallmentAmount)
		if inst.DueDate.Before(entry.OldestDueDate) {
			entry.OldestDueDate = inst.DueDate
		}
	}

	report := make([]*domain.OverdueLoan, 0, len(byLoan))
	for _, entry := range byLoan {
		report = append(report, entry)
	}
	sort.Slice(report, func(i, j int) bool {
		if !report[i].OldestDueDate.Equal(report[j].OldestDueDate) {
			return report[i].OldestDueDate.Before(report[j].OldestDueDate)
		}
		return report[i].LoanID.String() < report[j].LoanID.String()
	})

	s.logger.Info("overdue report built",
		zap.String("op", "service.OverdueLoans"),
		zap.Int("loans", len(report)),
		zap.Int("installments", len(installments)),
	)
	return report, nil
}

// UpcomingInstallments lists pending installments due within the next days days, today included.
func (s *ReportService) UpcomingInstallments(ctx context.Context, now time.Time, days int) ([]*domain.Installment, error) {
	if days <= 0 {
		return nil, customError.WrapInvalidArgument("days must be greater than 0")
	}

	from := utils.TruncateToDay(now.UTC())
	installments, err := s.loans.GetUpcomingSchedules(ctx, from, from.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}

	s.logger.Info("upcoming installments listed",
		zap.String("op", "service.UpcomingInstallments"),
		zap.Int("days", days),
		zap.Int("installments", len(installments)),
	)
	return installments, nil
}
