// Package lifecycle derives and validates loan state transitions.
//
//	draft --approved--> validated --activate/first payment--> active --balance retired--> paid
//
// overdue is never stored: it is projected from validated/active loans whose earliest pending
// installment is past due.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/segyhp/microcredit-engine/internal/domain"
	"github.com/segyhp/microcredit-engine/internal/ledger"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

// ApplyApproval records the borrower's decision. An approval moves a draft loan to validated;
// a rejection is recorded without changing the state.
func ApplyApproval(loan *domain.Loan, decision domain.ApprovalStatus, at time.Time) error {
	if decision != domain.ApprovalApproved && decision != domain.ApprovalRejected {
		return customError.WrapInvalidArgument(fmt.Sprintf("unknown approval decision %q", decision))
	}
	if loan.Approval != domain.ApprovalPending && loan.Approval != "" {
		return customError.WrapApprovalAlreadyResponded(loan.ID.String())
	}

	respondedAt := at
	loan.Approval = decision
	loan.ApprovalRespondedAt = &respondedAt

	if decision == domain.ApprovalApproved && loan.State == domain.LoanStateDraft {
		loan.State = domain.LoanStateValidated
	}
	return nil
}

// Activate disburses a validated loan.
func Activate(loan *domain.Loan) error {
	if loan.State != domain.LoanStateValidated {
		return customError.WrapInvalidState(fmt.Sprintf("only validated loans can be activated, loan is %s", loan.State))
	}
	loan.State = domain.LoanStateActive
	return nil
}

// CanAcceptPayment reports whether payments may be applied to the loan in its current state.
func CanAcceptPayment(loan *domain.Loan) error {
	switch loan.State {
	case domain.LoanStateValidated, domain.LoanStateActive:
		return nil
	case domain.LoanStatePaid:
		return customError.WrapNoPendingInstallments(loan.ID.String())
	default:
		return customError.WrapInvalidState(fmt.Sprintf("loan is %s and cannot receive payments until approved", loan.State))
	}
}

// AfterPayment moves the loan forward once a payment has been applied to its ledger.
// A loan with nothing left pending is paid; a validated loan becomes active on its first payment.
func AfterPayment(loan *domain.Loan, l *ledger.Ledger) {
	if len(l.Pending()) == 0 {
		loan.State = domain.LoanStatePaid
		return
	}
	if loan.State == domain.LoanStateValidated {
		loan.State = domain.LoanStateActive
	}
}

// Override relabels a loan administratively. It never touches installments or payments, and paid
// is neither a valid target nor a state that can be left: only the allocator retires a loan.
func Override(loan *domain.Loan, target domain.LoanState) error {
	if !target.Valid() {
		return customError.WrapInvalidArgument(fmt.Sprintf("unknown loan state %q", target))
	}
	if target == domain.LoanStatePaid {
		return customError.WrapInvalidState("a loan can only become paid by retiring its balance")
	}
	if loan.State == domain.LoanStatePaid {
		return customError.WrapInvalidState("paid loans cannot change state")
	}
	loan.State = target
	return nil
}

// Effective is the state shown to readers: the stored state, or overdue when a validated or active
// loan has a pending installment past its due date.
func Effective(loan *domain.Loan, l *ledger.Ledger, now time.Time) domain.LoanState {
	switch loan.State {
	case domain.LoanStateValidated, domain.LoanStateActive:
		if l != nil && l.HasOverdue(now) {
			return domain.LoanStateOverdue
		}
	}
	return loan.State
}
