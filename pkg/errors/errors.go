package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrInvalidConfiguration     = errors.New("invalid configuration")
	ErrInsufficientTerm         = errors.New("no pending installments left to recalculate")
	ErrInsufficientInstallments = errors.New("not enough pending installments")
	ErrInsufficientAmount       = errors.New("payment amount is insufficient")
	ErrExcessContribution       = errors.New("contribution exceeds outstanding balance")
	ErrExcessPayment            = errors.New("payment exceeds the amount required")
	ErrNoPendingInstallments    = errors.New("loan has no pending installments")
	ErrConcurrencyConflict      = errors.New("concurrent modification of loan")
	ErrPersistence              = errors.New("persistence failure")
	ErrLoanNotFound             = errors.New("loan not found")
	ErrConfigurationNotFound    = errors.New("loan configuration not found")
	ErrInvalidState             = errors.New("invalid loan state")
	ErrScheduleLocked           = errors.New("schedule can no longer be replaced")
	ErrApprovalAlreadyResponded = errors.New("approval already responded")
	ErrCache                    = errors.New("cache failure")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
	Details map[string]string
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a key/value that callers can use to correct the request.
func (e *BusinessError) WithDetail(key, value string) *BusinessError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidArgument          = "INVALID_ARGUMENT"
	ErrCodeInvalidConfiguration     = "INVALID_CONFIGURATION"
	ErrCodeInsufficientTerm         = "INSUFFICIENT_TERM"
	ErrCodeInsufficientInstallments = "INSUFFICIENT_INSTALLMENTS"
	ErrCodeInsufficientAmount       = "INSUFFICIENT_AMOUNT"
	ErrCodeExcessContribution       = "EXCESS_CONTRIBUTION"
	ErrCodeExcessPayment            = "EXCESS_PAYMENT"
	ErrCodeNoPendingInstallments    = "NO_PENDING_INSTALLMENTS"
	ErrCodeConcurrencyConflict      = "CONCURRENCY_CONFLICT"
	ErrCodePersistence              = "PERSISTENCE_ERROR"
	ErrCodeLoanNotFound             = "LOAN_NOT_FOUND"
	ErrCodeConfigurationNotFound    = "CONFIGURATION_NOT_FOUND"
	ErrCodeInvalidState             = "INVALID_STATE"
	ErrCodeScheduleLocked           = "SCHEDULE_LOCKED"
	ErrCodeApprovalAlreadyResponded = "APPROVAL_ALREADY_RESPONDED"
	ErrCodeCacheError               = "CACHE_ERROR"
)

// CodeOf returns the business code carried by err, or "" when err is not a BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Retryable reports whether the failed operation left no state behind and can be resubmitted as is.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrPersistence)
}

func WrapInvalidArgument(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidArgument, message, ErrInvalidArgument)
}

func WrapInvalidConfiguration(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidConfiguration, message, ErrInvalidConfiguration)
}

func WrapInsufficientTerm() *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientTerm,
		"there are no pending installments to recalculate",
		ErrInsufficientTerm,
	)
}

func WrapInsufficientInstallments(requested, pending int) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientInstallments,
		fmt.Sprintf("cannot cover %d installment(s), only %d pending", requested, pending),
		ErrInsufficientInstallments,
	).
		WithDetail("requested", fmt.Sprint(requested)).
		WithDetail("pending", fmt.Sprint(pending))
}

func WrapInsufficientAmount(count int, required, shortfall string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientAmount,
		fmt.Sprintf("amount insufficient to cover %d installment(s): %s required, %s short", count, required, shortfall),
		ErrInsufficientAmount,
	).
		WithDetail("required", required).
		WithDetail("shortfall", shortfall)
}

func WrapExcessContribution(amount, outstanding string) *BusinessError {
	return NewBusinessError(
		ErrCodeExcessContribution,
		fmt.Sprintf("contribution %s is greater than the outstanding balance %s", amount, outstanding),
		ErrExcessContribution,
	).WithDetail("outstanding", outstanding)
}

func WrapExcessPayment(required, excess string) *BusinessError {
	return NewBusinessError(
		ErrCodeExcessPayment,
		fmt.Sprintf("payment exceeds the %s required by %s", required, excess),
		ErrExcessPayment,
	).
		WithDetail("required", required).
		WithDetail("excess", excess)
}

func WrapNoPendingInstallments(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoPendingInstallments,
		fmt.Sprintf("Loan with ID %s has no pending installments", loanID),
		ErrNoPendingInstallments,
	)
}

func WrapConcurrencyConflict(loanID string, err error) *BusinessError {
	message := "Loan is being modified by another request"
	if loanID != "" {
		message = fmt.Sprintf("Loan with ID %s is being modified by another request", loanID)
	}
	be := NewBusinessError(ErrCodeConcurrencyConflict, message, ErrConcurrencyConflict)
	if err != nil {
		be.Err = fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return be
}

func WrapPersistence(err error) *BusinessError {
	return NewBusinessError(
		ErrCodePersistence,
		"database operation failed",
		fmt.Errorf("%w: %v", ErrPersistence, err),
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapConfigurationNotFound(id string) *BusinessError {
	return NewBusinessError(
		ErrCodeConfigurationNotFound,
		fmt.Sprintf("Loan configuration with ID %s not found", id),
		ErrConfigurationNotFound,
	)
}

func WrapInvalidState(message string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidState, message, ErrInvalidState)
}

func WrapScheduleLocked(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeScheduleLocked,
		fmt.Sprintf("Loan with ID %s already has payments; its schedule cannot be replaced", loanID),
		ErrScheduleLocked,
	)
}

func WrapApprovalAlreadyResponded(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeApprovalAlreadyResponded,
		fmt.Sprintf("Loan with ID %s was already approved or rejected", loanID),
		ErrApprovalAlreadyResponded,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		fmt.Errorf("%w: %v", ErrCache, err),
	)
}
