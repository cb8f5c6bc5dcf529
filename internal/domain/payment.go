package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentKind tells how a payment was applied to the loan.
type PaymentKind string

const (
	PaymentKindInstallmentSettlement PaymentKind = "installment_settlement"
	PaymentKindCapitalContribution   PaymentKind = "capital_contribution"
)

// PaymentMethod is how the money was received.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCard     PaymentMethod = "card"
)

// Payment is an append-only record of money received for a loan
type Payment struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	LoanID              uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount              decimal.Decimal `json:"amount" db:"amount"`
	Method              PaymentMethod   `json:"method" db:"method"`
	Kind                PaymentKind     `json:"kind" db:"kind"`
	PaymentDate         time.Time       `json:"payment_date" db:"payment_date"`
	InstallmentsCovered int             `json:"installments_covered" db:"installments_covered"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// MakePaymentRequest is the HTTP shape of a payment.
// Kind selects the policy; InstallmentsToCover is required for installment settlement.
type MakePaymentRequest struct {
	Amount              decimal.Decimal `json:"amount" validate:"gt=0"`
	Method              PaymentMethod   `json:"method" validate:"required,oneof=cash transfer card"`
	Kind                PaymentKind     `json:"kind" validate:"required,oneof=installment_settlement capital_contribution"`
	PaymentDate         *time.Time      `json:"payment_date"`
	InstallmentsToCover int             `json:"installments_to_cover" validate:"gte=0"`
}

// PaymentResult is everything a payment application changed.
type PaymentResult struct {
	Payments     []*Payment     `json:"payments"`
	Loan         *Loan          `json:"loan"`
	Installments []*Installment `json:"installments"`
}
