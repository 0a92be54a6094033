package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PartyLockKey builds redis keys for per-party settlement critical sections.
func PartyLockKey(partyID int64) string {
	return fmt.Sprintf("settlement:party:%d:lock", partyID)
}

// ErrLockHeld indicates the critical section is already owned elsewhere.
var ErrLockHeld = errors.New("lock already held")

// PartyMutex serialises settlements and wallet mutations for one party
// across service instances. It is an advisory lock on top of the storage
// transaction, not a replacement for it.
type PartyMutex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPartyMutex constructs a PartyMutex with the given lease TTL.
func NewPartyMutex(client *redis.Client, ttl time.Duration) *PartyMutex {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &PartyMutex{client: client, ttl: ttl}
}

// Acquire takes the per-party lock. The returned release function is safe to
// call once; it only deletes the key when this holder still owns it.
func (m *PartyMutex) Acquire(ctx context.Context, partyID int64) (func(context.Context), error) {
	if m == nil || m.client == nil {
		// Single-instance deployments may run without redis. The storage
		// level row locks still prevent double allocation.
		return func(context.Context) {}, nil
	}
	key := PartyLockKey(partyID)
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire party lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func(ctx context.Context) {
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		_ = m.client.Eval(ctx, script, []string{key}, token).Err()
	}
	return release, nil
}
