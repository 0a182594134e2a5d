// Package testsupport opens in-memory databases carrying the recovery schema.
package testsupport

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE clients (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX idx_clients_org_phone ON clients (org_id, phone)`,
	`CREATE TABLE invoices (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL DEFAULT 0,
		number TEXT NOT NULL,
		amount_cents INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		due_date DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'sent',
		paid_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE client_behavior_profiles (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		avg_payment_days REAL NOT NULL DEFAULT 0,
		on_time_payments INTEGER NOT NULL DEFAULT 0,
		late_payments INTEGER NOT NULL DEFAULT 0,
		on_time_rate REAL NOT NULL DEFAULT 0,
		response_rate REAL NOT NULL DEFAULT 0,
		preferred_channel TEXT NOT NULL DEFAULT 'email',
		optimal_contact_hour INTEGER NOT NULL DEFAULT 10,
		optimal_contact_day INTEGER NOT NULL DEFAULT 2,
		discount_responsive BOOLEAN NOT NULL DEFAULT 0,
		effective_discount_rate REAL NOT NULL DEFAULT 0,
		churn_risk_score REAL NOT NULL DEFAULT 0,
		risk_category TEXT NOT NULL DEFAULT 'low',
		last_analyzed_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (org_id, client_id)
	)`,
	`CREATE TABLE automated_reminders (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		invoice_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL DEFAULT 0,
		current_stage TEXT NOT NULL,
		status TEXT NOT NULL,
		channel TEXT NOT NULL,
		reminder_count INTEGER NOT NULL DEFAULT 0,
		total_reminders_sent INTEGER NOT NULL DEFAULT 0,
		next_scheduled_at DATETIME,
		scheduled_hour INTEGER,
		scheduled_day INTEGER,
		used_personalized_strategy BOOLEAN NOT NULL DEFAULT 0,
		discount_offered REAL,
		last_sent_stage TEXT,
		claimed_until DATETIME,
		stopped_at DATETIME,
		stop_reason TEXT,
		payment_received BOOLEAN NOT NULL DEFAULT 0,
		payment_received_at DATETIME,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX uq_automated_reminders_active_invoice ON automated_reminders (invoice_id) WHERE status = 'active'`,
	`CREATE INDEX idx_automated_reminders_due ON automated_reminders (org_id, status, next_scheduled_at)`,
	`CREATE TABLE reminder_events (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		automation_id INTEGER NOT NULL,
		invoice_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		stage TEXT NOT NULL,
		channel TEXT NOT NULL,
		status TEXT NOT NULL,
		recipient TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		delivery_id TEXT,
		discount_percent REAL,
		sent_at DATETIME NOT NULL,
		delivered_at DATETIME,
		read_at DATETIME,
		responded BOOLEAN NOT NULL DEFAULT 0,
		response_content TEXT,
		responded_at DATETIME,
		error_message TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// OpenDB returns a private in-memory database with the recovery schema applied.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// shared-cache memory databases serialize writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// Node returns a snowflake node for generating test identifiers.
func Node(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
