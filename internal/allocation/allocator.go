// Package allocation applies received money to a loan's ledger.
//
// Every check runs before the first mutation, so a rejected payment leaves the loan and its
// installments exactly as they were.
package allocation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/ledger"
	"github.com/segyhp/microcredit-engine/internal/lifecycle"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
	"github.com/segyhp/microcredit-engine/pkg/utils"
)

// Policy says how a payment is applied. It is one of CoverInstallments or CapitalContribution.
type Policy interface {
	policy()
}

// CoverInstallments settles the next Count pending installments in order.
type CoverInstallments struct {
	Count int
}

// CapitalContribution reduces the outstanding principal and re-amortizes what is left.
type CapitalContribution struct{}

func (CoverInstallments) policy()   {}
func (CapitalContribution) policy() {}

// ExcessPolicy decides what happens to money paid above what the covered installments require.
type ExcessPolicy string

const (
	// ExcessReject refuses the whole payment.
	ExcessReject ExcessPolicy = "reject"
	// ExcessAsContribution applies the surplus as a capital contribution in the same operation.
	ExcessAsContribution ExcessPolicy = "capital_contribution"
)

// ParseExcessPolicy maps a configuration value to an ExcessPolicy.
func ParseExcessPolicy(s string) (ExcessPolicy, error) {
	switch ExcessPolicy(s) {
	case ExcessReject, "":
		return ExcessReject, nil
	case ExcessAsContribution:
		return ExcessAsContribution, nil
	}
	return "", customError.WrapInvalidConfiguration(fmt.Sprintf("unknown excess payment policy %q", s))
}

// Request is one payment to apply.
type Request struct {
	Amount decimal.Decimal
	Date   time.Time
	Method domain.PaymentMethod
	Policy Policy
}

// Result is what an applied payment produced. Installments holds every installment the payment
// touched, in sequence order.
type Result struct {
	Payments     []*domain.Payment
	Loan         *domain.Loan
	Installments []*domain.Installment
	// Recalculated is true when the pending installments were re-amortized.
	Recalculated bool
}

// Allocator applies payments to a loan and its ledger.
type Allocator struct {
	excess    ExcessPolicy
	tolerance decimal.Decimal
	logger    *zap.Logger

	// Now stamps CreatedAt on payment records.
	Now func() time.Time
}

// New creates an allocator with the given excess policy.
func New(excess ExcessPolicy, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if excess == "" {
		excess = ExcessReject
	}
	return &Allocator{
		excess:    excess,
		tolerance: utils.CentTolerance,
		logger:    logger,
		Now:       time.Now,
	}
}

// ExcessPolicy returns the configured excess policy.
func (a *Allocator) ExcessPolicy() ExcessPolicy {
	return a.excess
}

// Apply applies req to loan and l in place. On error neither is modified.
func (a *Allocator) Apply(loan *domain.Loan, l *ledger.Ledger, req Request) (*Result, error) {
	if !req.Amount.IsPositive() {
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("payment amount must be positive, got %s", req.Amount))
	}
	if req.Date.IsZero() {
		return nil, customError.WrapInvalidArgument("payment date is required")
	}
	if err := lifecycle.CanAcceptPayment(loan); err != nil {
		return nil, err
	}

	switch p := req.Policy.(type) {
	case CoverInstallments:
		return a.cover(loan, l, req, p.Count)
	case CapitalContribution:
		return a.contribute(loan, l, req)
	default:
		return nil, customError.WrapInvalidArgument(fmt.Sprintf("unsupported payment policy %T", req.Policy))
	}
}

func (a *Allocator) cover(loan *domain.Loan, l *ledger.Ledger, req Request, count int) (*Result, error) {
	covered, required, err := l.Required(count)
	if err != nil {
		return nil, err
	}

	shortfall := required.Sub(req.Amount)
	if shortfall.GreaterThan(a.tolerance) {
		return nil, customError.WrapInsufficientAmount(count, required.StringFixed(2), shortfall.StringFixed(2))
	}

	excess := req.Amount.Sub(required)
	hasExcess := excess.GreaterThan(a.tolerance)
	if hasExcess {
		if a.excess != ExcessAsContribution {
			return nil, customError.WrapExcessPayment(required.StringFixed(2), excess.StringFixed(2))
		}
		if err := a.checkExcess(loan, l, count, required, excess); err != nil {
			return nil, err
		}
	}

	if covered, err = l.Settle(count, req.Date); err != nil {
		return nil, err
	}
	loan.AmountPaid = loan.AmountPaid.Add(required)

	result := &Result{
		Loan:         loan,
		Installments: covered,
		Payments: []*domain.Payment{
			// Recorded at required: a received amount within tolerance of it is taken as exact.
			a.payment(loan, req, required, domain.PaymentKindInstallmentSettlement, len(covered)),
		},
	}

	a.logger.Debug("installments settled",
		zap.String("op", "allocation.cover"),
		zap.String("loan_id", loan.ID.String()),
		zap.Int("count", len(covered)),
		zap.String("required", required.StringFixed(2)),
	)

	if !hasExcess {
		lifecycle.AfterPayment(loan, l)
		return result, nil
	}

	contribution, err := a.contribute(loan, l, Request{
		Amount: excess,
		Date:   req.Date,
		Method: req.Method,
		Policy: CapitalContribution{},
	})
	if err != nil {
		// checkExcess already ran the same checks against the same ledger.
		return nil, err
	}

	result.Payments = append(result.Payments, contribution.Payments...)
	result.Installments = mergeBySequence(result.Installments, contribution.Installments)
	result.Recalculated = contribution.Recalculated
	return result, nil
}

// checkExcess verifies that excess could be applied as a contribution once the first count
// pending installments are settled.
func (a *Allocator) checkExcess(loan *domain.Loan, l *ledger.Ledger, count int, required, excess decimal.Decimal) error {
	pending := l.Pending()
	if count >= len(pending) {
		return customError.WrapExcessPayment(required.StringFixed(2), excess.StringFixed(2))
	}
	outstanding := pending[count].OpeningBalance
	if excess.Sub(outstanding).GreaterThan(a.tolerance) {
		return customError.WrapExcessContribution(excess.StringFixed(2), outstanding.StringFixed(2))
	}
	return nil
}

func (a *Allocator) contribute(loan *domain.Loan, l *ledger.Ledger, req Request) (*Result, error) {
	pending := l.Pending()
	if len(pending) == 0 {
		return nil, customError.WrapNoPendingInstallments(loan.ID.String())
	}

	outstanding := l.OutstandingPrincipal()
	remaining := outstanding.Sub(req.Amount)
	if remaining.Neg().GreaterThan(a.tolerance) {
		return nil, customError.WrapExcessContribution(req.Amount.StringFixed(2), outstanding.StringFixed(2))
	}

	result := &Result{Loan: loan}

	if remaining.LessThanOrEqual(a.tolerance) {
		result.Installments = l.SettleAll(req.Date)
		a.logger.Debug("loan retired by contribution",
			zap.String("op", "allocation.contribute"),
			zap.String("loan_id", loan.ID.String()),
		)
	} else {
		changed, err := l.RecalculateRemaining(remaining, req.Date)
		if err != nil {
			return nil, err
		}
		loan.MonthlyInstallment = changed[0].InstallmentAmount
		result.Installments = changed
		result.Recalculated = true
		a.logger.Debug("pending installments recalculated",
			zap.String("op", "allocation.contribute"),
			zap.String("loan_id", loan.ID.String()),
			zap.String("outstanding", remaining.StringFixed(2)),
			zap.Int("installments", len(changed)),
		)
	}

	loan.AmountPaid = loan.AmountPaid.Add(req.Amount)
	lifecycle.AfterPayment(loan, l)
	result.Payments = []*domain.Payment{
		a.payment(loan, req, req.Amount, domain.PaymentKindCapitalContribution, 0),
	}
	return result, nil
}

func (a *Allocator) payment(loan *domain.Loan, req Request, amount decimal.Decimal, kind domain.PaymentKind, covered int) *domain.Payment {
	return &domain.Payment{
		ID:                  uuid.New(),
		LoanID:              loan.ID,
		Amount:              amount,
		Method:              req.Method,
		Kind:                kind,
		PaymentDate:         req.Date,
		InstallmentsCovered: covered,
		CreatedAt:           a.Now(),
	}
}

func mergeBySequence(a, b []*domain.Installment) []*domain.Installment {
	merged := make([]*domain.Installment, 0, len(a)+len(b))
	seen := make(map[int]bool, len(a)+len(b))
	for _, inst := range append(append([]*domain.Installment{}, a...), b...) {
		if seen[inst.SequenceNumber] {
			continue
		}
		seen[inst.SequenceNumber] = true
		merged = append(merged, inst)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].SequenceNumber < merged[j].SequenceNumber
	})
	return merged
}
