// Package schema holds the sqlite rendition of the ledger tables.
package schema

import (
	"fmt"

	"gorm.io/gorm"
)

// SQLite mirrors the goose migrations with sqlite column types. Used for
// local sqlite runs and tests, where the Postgres migrations cannot apply.
var SQLite = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		credit_eligible INTEGER NOT NULL DEFAULT 0,
		credit_limit NUMERIC NOT NULL DEFAULT 0,
		fuel_rate NUMERIC,
		credit_limit_used NUMERIC NOT NULL DEFAULT 0,
		amount_available NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		order_number TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		amount NUMERIC NOT NULL DEFAULT 0,
		final_amount NUMERIC,
		cash_collected NUMERIC,
		delivered_quantity NUMERIC,
		payment_confirmation_status TEXT NOT NULL DEFAULT 'pending',
		gateway_order_id TEXT,
		gateway_payment_id TEXT,
		gateway_signature TEXT,
		ledger_reconciled INTEGER NOT NULL DEFAULT 0,
		needs_manual_review INTEGER NOT NULL DEFAULT 0,
		reconciliation_error TEXT,
		reconciled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		total_amount NUMERIC,
		base_amount NUMERIC NOT NULL DEFAULT 0,
		finalised_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		order_id TEXT,
		invoice_id TEXT,
		direction TEXT NOT NULL,
		category TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		balance_before NUMERIC NOT NULL,
		balance_after NUMERIC NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		payment_channel TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		external_refs TEXT,
		delivered_quantity NUMERIC,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS account_balances (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL UNIQUE,
		current_balance NUMERIC NOT NULL DEFAULT 0,
		total_paid NUMERIC NOT NULL DEFAULT 0,
		total_orders NUMERIC NOT NULL DEFAULT 0,
		outstanding_amount NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		last_transaction_at DATETIME,
		last_payment_at DATETIME,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS cash_ledger_entries (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		method TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// SQLiteIndexes are applied after the tables.
var SQLiteIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_customer_created ON ledger_entries (customer_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_invoice ON ledger_entries (invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_order ON ledger_entries (customer_id, order_id, direction)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_cash_ledger_entries_invoice_direction ON cash_ledger_entries (invoice_id, direction)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_once ON outbox_events (event_type, aggregate_id) WHERE event_type = 'invoice_finalised'`,
}

// ApplySQLite creates every table and index that does not exist yet.
func ApplySQLite(conn *gorm.DB) error {
	for _, stmt := range append(append([]string{}, SQLite...), SQLiteIndexes...) {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
