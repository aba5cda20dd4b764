package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLeaseTTL = 5 * time.Minute

// Lock keeps two worker replicas from sweeping the same records at once.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	LockKey(name string) string
}

// RedisLease is a Lock held as a Redis key that expires on its own, so a
// crashed holder blocks other replicas for at most one TTL. Each acquisition
// writes a fresh token and only that token can release the key.
type RedisLease struct {
	store leaseStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLease(store leaseStore, name string, ttl time.Duration) (*RedisLease, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron: lease store required")
	case name == "":
		return nil, errors.New("cron: lease name required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLease{store: store, key: store.LockKey(name), ttl: ttl}, nil
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("take lease %s: %w", l.key, err)
	}
	if won {
		l.token = token
	}
	return won, nil
}

// TTL is how long an acquired lease survives without a release.
func (l *RedisLease) TTL() time.Duration { return l.ttl }

// Release is a no-op when the lease was never taken or already moved on to
// another replica after expiring.
func (l *RedisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	if _, err := l.store.CompareAndDelete(ctx, l.key, token); err != nil {
		return fmt.Errorf("drop lease %s: %w", l.key, err)
	}
	return nil
}
