package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusinessError_IsAndCode(t *testing.T) {
	err := fmt.Errorf("apply payment: %w", WrapInsufficientAmount(2, "1000.00", "100.00"))

	assert.True(t, errors.Is(err, ErrInsufficientAmount))
	assert.Equal(t, ErrCodeInsufficientAmount, CodeOf(err))

	var be *BusinessError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, "1000.00", be.Details["required"])
	assert.Equal(t, "100.00", be.Details["shortfall"])
	assert.Contains(t, be.Error(), "cover 2 installment(s)")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("boom")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"concurrency conflict", WrapConcurrencyConflict("loan-1", errors.New("version mismatch")), true},
		{"persistence", WrapPersistence(errors.New("connection reset")), true},
		{"insufficient amount", WrapInsufficientAmount(1, "500.00", "1.00"), false},
		{"not found", WrapLoanNotFound("loan-1"), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
