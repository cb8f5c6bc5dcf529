package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/microcredit-engine/pkg/amortization"
)

// LoanConfiguration is a named loan product: a rate and an amortization method.
// Loans copy the rate and method when they are created, so later edits do not reach them.
type LoanConfiguration struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	Name               string              `json:"name" db:"name"`
	AnnualInterestRate decimal.Decimal     `json:"annual_interest_rate" db:"annual_interest_rate"`
	Method             amortization.Method `json:"method" db:"method"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// Terms returns the configuration as calculator input.
func (c LoanConfiguration) Terms() amortization.Terms {
	return amortization.Terms{AnnualRate: c.AnnualInterestRate, Method: c.Method}
}

type ConfigurationRequest struct {
	Name               string          `json:"name" validate:"required,max=120"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate" validate:"gt=0"`
	Method             string          `json:"method" validate:"required"`
}
