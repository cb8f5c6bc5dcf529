package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	customError "github.com/segyhp/microcredit-engine/pkg/errors"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker takes locks with SET NX PX. A lock expires after ttl if its holder dies;
// Lock gives up after wait.
func NewRedisLocker(client redis.Cmdable, ttl, wait time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, customError.WrapPersistence(fmt.Errorf("acquire lock %s: %w", key, err))
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err()
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, customError.WrapConcurrencyConflict(key, fmt.Errorf("lock not acquired within %s", l.wait))
		case <-ticker.C:
		}
	}
}

// memoryLock is one key's slot. refs counts holders and waiters; the entry is dropped at zero.
type memoryLock struct {
	slot chan struct{}
	refs int
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
	wait  time.Duration
}

// NewMemoryLocker serializes work per key inside one process.
func NewMemoryLocker(wait time.Duration) Locker {
	return &memoryLocker{
		locks: make(map[string]*memoryLock),
		wait:  wait,
	}
}

func (l *memoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	entry := l.ref(key)

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	select {
	case entry.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.slot
				l.unref(key, entry)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, customError.WrapConcurrencyConflict(key, fmt.Errorf("lock not acquired within %s", l.wait))
	}
}

func (l *memoryLocker) ref(key string) *memoryLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &memoryLock{slot: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *memoryLocker) unref(key string, entry *memoryLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
