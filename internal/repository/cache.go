package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/microcredit-engine/internal/domain"
	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

func scheduleKey(loanID uuid.UUID) string {
	return fmt.Sprintf("schedule:%s", loanID)
}

// cachedSchedule is one cache entry: the installments as read at a given loan version.
type cachedSchedule struct {
	Version      int                   `json:"version"`
	Installments []*domain.Installment `json:"installments"`
}

type redisScheduleCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisScheduleCache caches schedules as JSON under schedule:<loan id> for ttl.
func NewRedisScheduleCache(client redis.Cmdable, ttl time.Duration) ScheduleCache {
	return &redisScheduleCache{client: client, ttl: ttl}
}

func (c *redisScheduleCache) Get(ctx context.Context, loanID uuid.UUID, version int) ([]*domain.Installment, bool, error) {
	raw, err := c.client.Get(ctx, scheduleKey(loanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, customError.WrapCacheError(err)
	}

	var entry cachedSchedule
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, customError.WrapCacheError(err)
	}
	if entry.Version != version {
		return nil, false, nil
	}
	return entry.Installments, true, nil
}

func (c *redisScheduleCache) Set(ctx context.Context, loanID uuid.UUID, version int, installments []*domain.Installment) error {
	raw, err := json.Marshal(cachedSchedule{Version: version, Installments: installments})
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, scheduleKey(loanID), raw, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *redisScheduleCache) Invalidate(ctx context.Context, loanID uuid.UUID) error {
	if err := c.client.Del(ctx, scheduleKey(loanID)).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// memoryScheduleCache keeps deep copies so callers never share installments with the cache.
type memoryScheduleCache struct {
	mu    sync.RWMutex
	items map[uuid.UUID]cachedSchedule
}

// NewMemoryScheduleCache is the in-process cache used when redis is disabled.
func NewMemoryScheduleCache() ScheduleCache {
	return &memoryScheduleCache{items: make(map[uuid.UUID]cachedSchedule)}
}

func (c *memoryScheduleCache) Get(_ context.Context, loanID uuid.UUID, version int) ([]*domain.Installment, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[loanID]
	if !ok || entry.Version != version {
		return nil, false, nil
	}
	return domain.CloneInstallments(entry.Installments), true, nil
}

func (c *memoryScheduleCache) Set(_ context.Context, loanID uuid.UUID, version int, installments []*domain.Installment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[loanID] = cachedSchedule{Version: version, Installments: domain.CloneInstallments(installments)}
	return nil
}

func (c *memoryScheduleCache) Invalidate(_ context.Context, loanID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, loanID)
	return nil
}
