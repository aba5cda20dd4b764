package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := NewFromRaw(raw)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestFixedWindowAllow(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "checkout:user-1", 2, time.Minute)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if count != int64(i) || allowed != (i <= 2) {
			t.Fatalf("attempt %d: allowed=%v count=%d", i, allowed, count)
		}
	}

	if ttl := mr.TTL(client.RateLimitKey("checkout:user-1")); ttl != time.Minute {
		t.Fatalf("window ttl = %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)

	allowed, count, err := client.FixedWindowAllow(ctx, "checkout:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("after window: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected a fresh window, got allowed=%v count=%d", allowed, count)
	}
}

func TestIdempotencyRecordLifecycle(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	key := client.IdempotencyKey("POST /checkout", "user-1:key-1")

	ok, err := client.SetNX(ctx, key, `{"done":false}`, time.Minute)
	if err != nil || !ok {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, key, `{"status":500}`, time.Hour)
	if err != nil || ok {
		t.Fatalf("second reserve must lose: ok=%v err=%v", ok, err)
	}

	if err := client.Set(ctx, key, `{"done":true,"status":201}`, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `{"done":true,"status":201}` {
		t.Fatalf("set did not overwrite the reservation: %s", got)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Fatalf("set must replace the reservation ttl, got %s", ttl)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("key survived del")
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestCompareAndDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	key := client.LockKey("sweep")
	if err := mr.Set(key, "owner-a"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	steps := []struct {
		token   string
		deleted bool
		exists  bool
	}{
		{token: "owner-b", deleted: false, exists: true},
		{token: "owner-a", deleted: true, exists: false},
		{token: "owner-a", deleted: false, exists: false},
	}
	for i, step := range steps {
		deleted, err := client.CompareAndDelete(ctx, key, step.token)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if deleted != step.deleted || mr.Exists(key) != step.exists {
			t.Fatalf("step %d: deleted=%v exists=%v", i, deleted, mr.Exists(key))
		}
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"):         "bk:idempotency:scope:id",
		client.RateLimitKey("checkout:user"):         "bk:rate_limit:checkout:user",
		client.IdempotencyKey("scope", ""):           "bk:idempotency:scope",
		client.LockKey("pending-payment-sweep:prod"): "bk:lock:pending-payment-sweep:prod",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("key = %q, want %q", got, want)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@localhost:6380/2",
		PoolSize:    7,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("from url: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.Password != "secret" || opts.PoolSize != 7 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected options from url: %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, PoolSize: 4})
	if err != nil {
		t.Fatalf("from address: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 || opts.PoolSize != 4 {
		t.Fatalf("unexpected options from address: %+v", opts)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	if err := client.Ping(ctx); err == nil {
		t.Fatal("ping should fail")
	}
	if _, _, err := client.FixedWindowAllow(ctx, "x", 1, time.Second); err == nil {
		t.Fatal("fixed window should fail")
	}
	if _, err := client.CompareAndDelete(ctx, "x", "y"); err == nil {
		t.Fatal("compare and delete should fail")
	}
	if err := client.Set(ctx, "x", "y", time.Second); err == nil {
		t.Fatal("set should fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
