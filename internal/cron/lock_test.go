package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	pkgredis "github.com/angelmondragon/bookstore-backend/pkg/redis"
)

func newLockStore(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return pkgredis.NewFromRaw(raw), mr
}

func mustAcquire(t *testing.T, lease *RedisLease, want bool) {
	t.Helper()
	ok, err := lease.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok != want {
		t.Fatalf("acquire returned %v, want %v", ok, want)
	}
}

func TestRedisLeaseIsExclusive(t *testing.T) {
	store, mr := newLockStore(t)
	ctx := context.Background()

	first, err := NewRedisLease(store, "sweep:test", time.Minute)
	if err != nil {
		t.Fatalf("new lease: %v", err)
	}
	second, err := NewRedisLease(store, "sweep:test", time.Minute)
	if err != nil {
		t.Fatalf("new lease: %v", err)
	}

	mustAcquire(t, first, true)
	if ttl := mr.TTL("bk:lock:sweep:test"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}
	if first.TTL() != time.Minute {
		t.Fatalf("TTL() = %s", first.TTL())
	}
	mustAcquire(t, second, false)

	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists("bk:lock:sweep:test") {
		t.Fatal("non-owner must not release")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("bk:lock:sweep:test") {
		t.Fatal("owner release should drop the key")
	}

	mustAcquire(t, second, true)
}

func TestRedisLeaseDoesNotDeleteAfterLeaseMovedOn(t *testing.T) {
	store, mr := newLockStore(t)

	lease, err := NewRedisLease(store, "sweep:expired", time.Second)
	if err != nil {
		t.Fatalf("new lease: %v", err)
	}
	mustAcquire(t, lease, true)

	mr.FastForward(2 * time.Second)
	if err := mr.Set("bk:lock:sweep:expired", "someone-else"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, err := mr.Get("bk:lock:sweep:expired")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "someone-else" {
		t.Fatalf("foreign lease overwritten: %q", got)
	}
}

func TestNewRedisLeaseValidates(t *testing.T) {
	store, _ := newLockStore(t)
	if _, err := NewRedisLease(nil, "x", 0); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := NewRedisLease(store, "", 0); err == nil {
		t.Fatal("expected error without name")
	}
	lease, err := NewRedisLease(store, "defaults", 0)
	if err != nil {
		t.Fatalf("new lease: %v", err)
	}
	if lease.TTL() != defaultLeaseTTL {
		t.Fatalf("expected default ttl, got %s", lease.TTL())
	}
}

func TestRedisLeaseReleaseWithoutAcquireIsNoop(t *testing.T) {
	store, mr := newLockStore(t)
	if err := mr.Set("bk:lock:idle", "other"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	lease, err := NewRedisLease(store, "idle", 0)
	if err != nil {
		t.Fatalf("new lease: %v", err)
	}
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists("bk:lock:idle") {
		t.Fatal("release without acquire removed a foreign key")
	}
}
