package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OverdueLoan aggregates the past-due installments of one loan.
type OverdueLoan struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	OverdueCount  int             `json:"overdue_count"`
	TotalOverdue  decimal.Decimal `json:"total_overdue"`
	OldestDueDate time.Time       `json:"oldest_due_date"`
}
