package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/microcredit-engine/pkg/amortization"
)

// LoanState is the lifecycle label of a loan.
type LoanState string

const (
	LoanStateDraft     LoanState = "draft"
	LoanStateValidated LoanState = "validated"
	LoanStateActive    LoanState = "active"
	LoanStatePaid      LoanState = "paid"
	// LoanStateOverdue is never stored; it is derived when a loan is read.
	LoanStateOverdue LoanState = "overdue"
)

// Valid reports whether s can be stored on a loan.
func (s LoanState) Valid() bool {
	switch s {
	case LoanStateDraft, LoanStateValidated, LoanStateActive, LoanStatePaid:
		return true
	}
	return false
}

// ApprovalStatus is the borrower's answer to the loan offer.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Loan represents a loan entity
type Loan struct {
	ID                  uuid.UUID           `json:"id" db:"id"`
	ClientID            string              `json:"client_id" db:"client_id"`
	ConfigurationID     uuid.UUID           `json:"configuration_id" db:"configuration_id"`
	Principal           decimal.Decimal     `json:"principal" db:"principal"`
	AnnualInterestRate  decimal.Decimal     `json:"annual_interest_rate" db:"annual_interest_rate"`
	Method              amortization.Method `json:"method" db:"method"`
	TermMonths          int                 `json:"term_months" db:"term_months"`
	StartDate           time.Time           `json:"start_date" db:"start_date"`
	MonthlyInstallment  decimal.Decimal     `json:"monthly_installment" db:"monthly_installment"`
	AmountPaid          decimal.Decimal     `json:"amount_paid" db:"amount_paid"`
	State               LoanState           `json:"state" db:"state"`
	Approval            ApprovalStatus      `json:"approval" db:"approval"`
	ApprovalRespondedAt *time.Time          `json:"approval_responded_at,omitempty" db:"approval_responded_at"`
	Version             int                 `json:"version" db:"version"`
	CreatedAt           time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" db:"updated_at"`
}

// Terms returns the rate and method the loan's schedule is computed with.
func (l *Loan) Terms() amortization.Terms {
	return amortization.Terms{AnnualRate: l.AnnualInterestRate, Method: l.Method}
}

// Clone returns a copy that can be mutated without affecting l.
func (l *Loan) Clone() *Loan {
	c := *l
	if l.ApprovalRespondedAt != nil {
		at := *l.ApprovalRespondedAt
		c.ApprovalRespondedAt = &at
	}
	return &c
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	ClientID        string          `json:"client_id" validate:"required"`
	ConfigurationID uuid.UUID       `json:"configuration_id" validate:"required"`
	Principal       decimal.Decimal `json:"principal" validate:"gt=0"`
	TermMonths      int             `json:"term_months" validate:"required,gt=0,lte=600"`
	StartDate       *time.Time      `json:"start_date"`
}

type CreateLoanResponse struct {
	Loan     *Loan          `json:"loan"`
	Schedule []*Installment `json:"schedule"`
}

// UpdateTermsRequest edits a loan's terms. Nil fields keep their current value.
type UpdateTermsRequest struct {
	Principal       *decimal.Decimal `json:"principal,omitempty"`
	TermMonths      *int             `json:"term_months,omitempty" validate:"omitempty,gt=0,lte=600"`
	ConfigurationID *uuid.UUID       `json:"configuration_id,omitempty"`
	StartDate       *time.Time       `json:"start_date,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateTermsRequest) Empty() bool {
	return r.Principal == nil && r.TermMonths == nil && r.ConfigurationID == nil && r.StartDate == nil
}

type ApprovalRequest struct {
	Decision ApprovalStatus `json:"decision" validate:"required,oneof=approved rejected"`
}

type OverrideStateRequest struct {
	State LoanState `json:"state" validate:"required,oneof=draft validated active"`
}

type LoanFilter struct {
	State LoanState
}

// LoanSummary is the read projection consumed by reporting and export.
type LoanSummary struct {
	Loan            *Loan           `json:"loan"`
	EffectiveState  LoanState       `json:"effective_state"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	TotalInterest   decimal.Decimal `json:"total_interest"`
	TotalPayable    decimal.Decimal `json:"total_payable"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	TotalPending    decimal.Decimal `json:"total_pending"`
	TotalOverdue    decimal.Decimal `json:"total_overdue"`
	TotalReceived   decimal.Decimal `json:"total_received"`
	OverdueCount    int             `json:"overdue_count"`
	PendingCount    int             `json:"pending_count"`
	SettledCount    int             `json:"settled_count"`
	NextDue         *Installment    `json:"next_due,omitempty"`
	LastPaymentDate *time.Time      `json:"last_payment_date,omitempty"`
}
