package repository

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/microcredit-engine/internal/domain"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

func TestMemoryLocker_SerializesPerKey(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)

	unlock, err := locker.Lock(ctx, "loan-1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "loan-1")
	assert.True(t, errors.Is(err, customError.ErrConcurrencyConflict))

	other, err := locker.Lock(ctx, "loan-2")
	require.NoError(t, err, "different keys do not contend")
	other()

	unlock()
	unlock() // releasing twice is harmless

	again, err := locker.Lock(ctx, "loan-1")
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	locker := NewMemoryLocker(time.Second)

	var (
		wg      sync.WaitGroup
		holders int
		maxSeen int
		mu      sync.Mutex
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "loan")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestMemoryLocker_DropsIdleKeys(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	locks := locker.(*memoryLocker)

	unlock, err := locker.Lock(ctx, "loan-1")
	require.NoError(t, err)
	_, err = locker.Lock(ctx, "loan-1")
	require.Error(t, err)
	assert.Len(t, locks.locks, 1, "held key is kept after a timed-out waiter leaves")

	unlock()
	assert.Empty(t, locks.locks)

	for i := 0; i < 50; i++ {
		release, err := locker.Lock(ctx, uuid.NewString())
		require.NoError(t, err)
		release()
	}
	assert.Empty(t, locks.locks)
}

func TestMemoryScheduleCache(t *testing.T) {
	cache := NewMemoryScheduleCache()
	loanID := uuid.New()

	_, ok, err := cache.Get(ctx, loanID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	installments := []*domain.Installment{{ID: uuid.New(), LoanID: loanID, SequenceNumber: 1, InstallmentAmount: decimal.NewFromInt(10)}}
	require.NoError(t, cache.Set(ctx, loanID, 1, installments))

	installments[0].Settled = true
	got, ok, err := cache.Get(ctx, loanID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got[0].Settled, "cache holds its own copy")

	_, ok, err = cache.Get(ctx, loanID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "entry read at another version is a miss")

	require.NoError(t, cache.Invalidate(ctx, loanID))
	_, ok, _ = cache.Get(ctx, loanID, 1)
	assert.False(t, ok)
}
