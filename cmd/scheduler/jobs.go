package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/domain"
)

// jobRunTimeout bounds one run of a scheduled job.
const jobRunTimeout = 5 * time.Minute

type reportService interface {
	OverdueLoans(ctx context.Context, now time.Time) ([]*domain.OverdueLoan, error)
	UpcomingInstallments(ctx context.Context, now time.Time, days int) ([]*domain.Installment, error)
}

type jobs struct {
	reports      reportService
	reminderDays int
	logger       *zap.Logger
	now          func() time.Time
}

func newJobs(reports reportService, reminderDays int, logger *zap.Logger) *jobs {
	return &jobs{
		reports:      reports,
		reminderDays: reminderDays,
		logger:       logger,
		now:          time.Now,
	}
}

// reportOverdue logs every loan with past-due installments. Overdue is derived on read, so no
// loan row is rewritten here.
func (j *jobs) reportOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), jobRunTimeout)
	defer cancel()

	overdue, err := j.reports.OverdueLoans(ctx, j.now())
	if err != nil {
		j.logger.Error("overdue sweep failed", zap.String("op", "jobs.reportOverdue"), zap.Error(err))
		return
	}

	for _, loan := range overdue {
		j.logger.Warn("loan overdue",
			zap.String("op", "jobs.reportOverdue"),
			zap.String("loan_id", loan.LoanID.String()),
			zap.Int("overdue_count", loan.OverdueCount),
			zap.String("total_overdue", loan.TotalOverdue.StringFixed(2)),
			zap.Time("oldest_due_date", loan.OldestDueDate),
		)
	}
	j.logger.Info("overdue sweep finished", zap.String("op", "jobs.reportOverdue"), zap.Int("loans", len(overdue)))
}

// sendReminders emits one reminder per installment due within the reminder window.
func (j *jobs) sendReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobRunTimeout)
	defer cancel()

	upcoming, err := j.reports.UpcomingInstallments(ctx, j.now(), j.reminderDays)
	if err != nil {
		j.logger.Error("reminder run failed", zap.String("op", "jobs.sendReminders"), zap.Error(err))
		return
	}

	for _, inst := range upcoming {
		j.logger.Info("payment reminder",
			zap.String("op", "jobs.sendReminders"),
			zap.String("loan_id", inst.LoanID.String()),
			zap.Int("sequence_number", inst.SequenceNumber),
			zap.String("amount", inst.InstallmentAmount.StringFixed(2)),
			zap.Time("due_date", inst.DueDate),
		)
	}
	j.logger.Info("reminder run finished", zap.String("op", "jobs.sendReminders"), zap.Int("reminders", len(upcoming)))
}
