package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/repository"
)

// loanGuard runs a read-modify-write of one loan under its lock and inside a transaction.
// Writers on the same loan are serialized; readers never take the lock.
type loanGuard struct {
	loans  repository.LoanRepository
	tx     repository.Transactor
	locker repository.Locker
	cache  repository.ScheduleCache
	logger *zap.Logger
}

func lockKey(loanID uuid.UUID) string {
	return "loan:" + loanID.String()
}

// withLoan loads the loan inside the transaction and hands it to fn. The schedule cache entry is
// dropped once the transaction commits.
func (g *loanGuard) withLoan(ctx context.Context, loanID uuid.UUID, op string, fn func(ctx context.Context, loan *domain.Loan) error) error {
	unlock, err := g.locker.Lock(ctx, lockKey(loanID))
	if err != nil {
		g.logger.Warn("loan lock not acquired",
			zap.String("op", op),
			zap.String("loan_id", loanID.String()),
			zap.Error(err),
		)
		return err
	}
	defer unlock()

	err = g.tx.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := g.loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(ctx, loan)
	})
	if err != nil {
		return err
	}

	g.invalidate(ctx, loanID, op)
	return nil
}

func (g *loanGuard) invalidate(ctx context.Context, loanID uuid.UUID, op string) {
	if err := g.cache.Invalidate(ctx, loanID); err != nil {
		g.logger.Warn("schedule cache invalidation failed",
			zap.String("op", op),
			zap.String("loan_id", loanID.String()),
			zap.Error(err),
		)
	}
}

// schedule returns the loan's installments, from the cache when the cached entry was read at the
// loan's current version. The header must be loaded before the installments: an entry written by a
// reader that raced a commit carries the older version and is never served for the newer one.
func (g *loanGuard) schedule(ctx context.Context, loan *domain.Loan, op string) ([]*domain.Installment, error) {
	cached, ok, err := g.cache.Get(ctx, loan.ID, loan.Version)
	if err != nil {
		g.logger.Warn("schedule cache read failed",
			zap.String("op", op),
			zap.String("loan_id", loan.ID.String()),
			zap.Error(err),
		)
	}
	if ok {
		return cached, nil
	}

	installments, err := g.loans.GetScheduleByLoanID(ctx, loan.ID)
	if err != nil {
		return nil, err
	}

	if err := g.cache.Set(ctx, loan.ID, loan.Version, installments); err != nil {
		g.logger.Warn("schedule cache write failed",
			zap.String("op", op),
			zap.String("loan_id", loan.ID.String()),
			zap.Error(err),
		)
	}
	return installments, nil
}
