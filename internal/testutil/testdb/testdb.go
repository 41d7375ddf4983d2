// Package testdb opens an isolated in-memory database carrying the billing schema.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Schema mirrors the embedded migrations in SQLite syntax.
var Schema = []string{
	`CREATE TABLE customers (
		id BIGINT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT,
		phone_number TEXT NOT NULL,
		gender TEXT,
		county TEXT,
		town TEXT,
		location TEXT,
		estate_name TEXT,
		building TEXT,
		house_number TEXT,
		category TEXT,
		monthly_charge BIGINT NOT NULL DEFAULT 0,
		collection_day TEXT,
		collected BOOLEAN NOT NULL DEFAULT FALSE,
		closing_balance BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_customers_phone_number ON customers(phone_number)`,
	`CREATE TABLE invoices (
		id BIGINT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		customer_id BIGINT NOT NULL,
		invoice_period DATETIME NOT NULL,
		invoice_amount BIGINT NOT NULL,
		amount_paid BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		closing_balance BIGINT NOT NULL DEFAULT 0,
		is_system_generated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		cancelled_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_invoices_invoice_number ON invoices(invoice_number)`,
	`CREATE UNIQUE INDEX ux_invoices_system_period ON invoices(customer_id, invoice_period)
		WHERE is_system_generated = 1 AND status <> 'CANCELLED'`,
	`CREATE TABLE invoice_items (
		id BIGINT PRIMARY KEY,
		invoice_id BIGINT NOT NULL,
		description TEXT NOT NULL,
		unit_amount BIGINT NOT NULL,
		quantity BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payments (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT,
		amount BIGINT NOT NULL,
		mode_of_payment TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		receipted BOOLEAN NOT NULL DEFAULT FALSE,
		payer_name TEXT,
		payer_phone TEXT,
		reference TEXT,
		paid_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payments_transaction_id ON payments(transaction_id)`,
	`CREATE TABLE receipts (
		id BIGINT PRIMARY KEY,
		receipt_number TEXT NOT NULL,
		payment_id BIGINT NOT NULL,
		customer_id BIGINT NOT NULL,
		invoice_id BIGINT,
		amount BIGINT NOT NULL,
		paid_by TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_receipts_receipt_number ON receipts(receipt_number)`,
	`CREATE TABLE mpesa_transactions (
		id BIGINT PRIMARY KEY,
		trans_id TEXT NOT NULL,
		transaction_type TEXT,
		trans_time DATETIME,
		amount BIGINT NOT NULL,
		business_short_code TEXT,
		bill_ref_number TEXT,
		msisdn TEXT,
		first_name TEXT,
		payload TEXT,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at DATETIME,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_mpesa_transactions_trans_id ON mpesa_transactions(trans_id)`,
	`CREATE TABLE balance_entries (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		source_type TEXT NOT NULL,
		source_id BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_balance_entries_source ON balance_entries(source_type, source_id)`,
	`CREATE TABLE notifications (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT,
		channel TEXT NOT NULL,
		recipient TEXT NOT NULL,
		subject TEXT,
		body TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		sent_at DATETIME
	)`,
	`CREATE TABLE collection_history (
		id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		collected_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// Open returns a fresh database with Schema applied.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// Exec runs a seed statement and fails the test on error.
func Exec(t *testing.T, db *gorm.DB, sql string, args ...any) {
	t.Helper()
	if err := db.Exec(sql, args...).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
}
