package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		months   int
		expected time.Time
	}{
		{
			name:     "plain month",
			start:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "end of month clamps into leap february",
			start:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "end of month clamps into short month",
			start:    time.Date(2023, 8, 31, 0, 0, 0, 0, time.UTC),
			months:   1,
			expected: time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "crosses year",
			start:    time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC),
			months:   3,
			expected: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "twelve months",
			start:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			months:   12,
			expected: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddMonths(tt.start, tt.months))
		})
	}
}

func TestCalculateDueDate(t *testing.T) {
	baseDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), CalculateDueDate(baseDate, 1))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), CalculateDueDate(baseDate, 12))
}

func TestIsDateOverdue(t *testing.T) {
	due := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsDateOverdue(due, time.Date(2024, 5, 9, 23, 0, 0, 0, time.UTC)))
	assert.False(t, IsDateOverdue(due, time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)), "due today is not overdue")
	assert.True(t, IsDateOverdue(due, time.Date(2024, 5, 11, 0, 0, 1, 0, time.UTC)))
}

func TestNearlyEqual(t *testing.T) {
	assert.True(t, NearlyEqual(decimal.RequireFromString("100.000001"), decimal.NewFromInt(100)))
	assert.False(t, NearlyEqual(decimal.RequireFromString("100.01"), decimal.NewFromInt(100)))
	assert.True(t, IsZeroWithin(decimal.RequireFromString("-0.000001"), MoneyTolerance))
}

func TestSum(t *testing.T) {
	total := Sum(decimal.NewFromInt(500), decimal.NewFromInt(500), decimal.RequireFromString("0.25"))
	assert.True(t, total.Equal(decimal.RequireFromString("1000.25")))
	assert.True(t, Sum().IsZero())
}
