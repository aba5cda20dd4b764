// Package dbtest opens isolated in-memory SQLite databases carrying the
// bookstore schema, for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// schema mirrors pkg/migrate/migrations with SQLite-compatible types.
var schema = []string{
	`CREATE TABLE books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  price NUMERIC NOT NULL,
  cover_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  book_id TEXT NOT NULL,
  created_at DATETIME,
  CONSTRAINT cart_items_user_book_key UNIQUE (user_id, book_id)
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  idempotency_key TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT 'cart',
  items TEXT NOT NULL,
  total NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  shipping_address TEXT NOT NULL,
  payment_method_type TEXT NOT NULL,
  fulfillment_status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  initiation_status TEXT NOT NULL DEFAULT 'awaiting',
  initiation_error TEXT,
  initiation_attempts INTEGER NOT NULL DEFAULT 0,
  payment_link_id TEXT UNIQUE,
  payment_link_url TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT orders_user_idempotency_key UNIQUE (user_id, idempotency_key),
  CHECK (fulfillment_status = 'pending' OR payment_status = 'completed')
);`,
	`CREATE TABLE plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  interval TEXT NOT NULL DEFAULT 'month',
  features TEXT NOT NULL DEFAULT '{}',
  is_popular INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  idempotency_key TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  interval TEXT NOT NULL DEFAULT 'month',
  customer TEXT NOT NULL DEFAULT '{}',
  status TEXT NOT NULL DEFAULT 'pending',
  initiation_status TEXT NOT NULL DEFAULT 'awaiting',
  initiation_error TEXT,
  initiation_attempts INTEGER NOT NULL DEFAULT 0,
  payment_link_id TEXT UNIQUE,
  payment_link_url TEXT,
  current_period_start DATETIME,
  current_period_end DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT subscriptions_user_idempotency_key UNIQUE (user_id, idempotency_key)
);`,
}

// Open returns a fresh database private to the calling test. The pool is
// pinned to one connection so concurrent callers serialize instead of
// tripping SQLite table locks.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
