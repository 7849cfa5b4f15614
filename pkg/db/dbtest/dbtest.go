// Package dbtest opens an in-memory SQLite database carrying the storefront
// schema for repository and service tests.
package dbtest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ministeam/ministeam-api/pkg/db"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		country TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE genres (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE games (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT,
		price NUMERIC NOT NULL,
		stock INTEGER NOT NULL DEFAULT 999,
		release_date DATETIME,
		developer TEXT,
		publisher TEXT,
		genre_id TEXT REFERENCES genres (id) ON DELETE SET NULL,
		platform TEXT NOT NULL DEFAULT 'PC',
		age_rating TEXT,
		steam_app_id INTEGER,
		rawg_id INTEGER,
		image_url TEXT,
		trailer_url TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		average_rating NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, game_id)
	)`,
	`CREATE TABLE wishlist_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, game_id)
	)`,
	`CREATE TABLE purchases (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		total NUMERIC NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE purchase_line_items (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		price_paid NUMERIC NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		discount NUMERIC NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE library_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		purchase_id TEXT,
		status TEXT NOT NULL DEFAULT 'not_started',
		minutes_played INTEGER NOT NULL DEFAULT 0,
		acquired_at DATETIME NOT NULL,
		last_played_at DATETIME,
		UNIQUE (user_id, game_id)
	)`,
	`CREATE TABLE reviews (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 10),
		comment TEXT,
		recommended BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_id, game_id)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME NOT NULL,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// Open returns a fresh in-memory database with every storefront table. The
// pool is pinned to one connection so all statements see the same memory DB.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
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

// Client wraps Open in a *db.Client for code that needs WithTx.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}
