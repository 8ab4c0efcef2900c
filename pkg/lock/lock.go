// Package lock provides a per-event advisory lock backed by Redis.
//
// Mutations that touch shared capacity (order creation, reviving an expired
// order) hold the event's lock across the validate-then-commit sequence. A
// second holder is rejected immediately; callers surface that as a conflict
// so the client can retry later.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder currently owns the event lock.
var ErrLockHeld = errors.New("event is locked by another operation")

// releaseScript deletes the key only if the caller still owns it, so an
// expired-and-reacquired lock is never released by the old holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Manager acquires and releases event-scoped locks.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager creates a lock manager. ttl bounds how long a crashed holder
// can keep an event locked.
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl}
}

// Lease is a held event lock. Release it after commit or rollback.
type Lease struct {
	manager *Manager
	key     string
	value   string
}

func eventKey(eventID uuid.UUID) string {
	return "lock:event:" + eventID.String()
}

// Acquire takes the lock for the given event, or fails immediately with
// ErrLockHeld. There is no blocking wait and no retry.
func (m *Manager) Acquire(ctx context.Context, eventID uuid.UUID) (*Lease, error) {
	key := eventKey(eventID)
	value := uuid.New().String()
	ok, err := m.client.SetNX(ctx, key, value, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire event lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{manager: m, key: key, value: value}, nil
}

// Release frees the lock if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if err := l.manager.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Err(); err != nil {
		return fmt.Errorf("release event lock: %w", err)
	}
	return nil
}
