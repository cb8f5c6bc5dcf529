package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Installment represents one scheduled monthly obligation of a loan
type Installment struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            uuid.UUID       `json:"loan_id" db:"loan_id"`
	SequenceNumber    int             `json:"sequence_number" db:"sequence_number"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	InstallmentAmount decimal.Decimal `json:"installment_amount" db:"installment_amount"`
	PrincipalPortion  decimal.Decimal `json:"principal_portion" db:"principal_portion"`
	InterestPortion   decimal.Decimal `json:"interest_portion" db:"interest_portion"`
	OpeningBalance    decimal.Decimal `json:"opening_balance" db:"opening_balance"`
	ClosingBalance    decimal.Decimal `json:"closing_balance" db:"closing_balance"`
	Settled           bool            `json:"settled" db:"settled"`
	SettledDate       *time.Time      `json:"settled_date,omitempty" db:"settled_date"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// Clone returns a deep copy of i.
func (i *Installment) Clone() *Installment {
	c := *i
	if i.SettledDate != nil {
		at := *i.SettledDate
		c.SettledDate = &at
	}
	return &c
}

type ScheduleResponse struct {
	LoanID   uuid.UUID      `json:"loan_id"`
	Schedule []*Installment `json:"schedule"`
}

// CloneInstallments deep-copies a schedule.
func CloneInstallments(in []*Installment) []*Installment {
	out := make([]*Installment, len(in))
	for i, inst := range in {
		out[i] = inst.Clone()
	}
	return out
}
