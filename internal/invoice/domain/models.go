// Package domain holds the invoice record the recovery workflow chases.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
	StatusVoid    Status = "void"
)

type Invoice struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"organization_id"`
	ClientID    snowflake.ID `gorm:"not null;index" json:"client_id"`
	UserID      snowflake.ID `json:"user_id"`
	Number      string       `json:"number"`
	AmountCents int64        `json:"amount_cents"`
	Currency    string       `json:"currency"`
	DueDate     time.Time    `json:"due_date"`
	Status      Status       `json:"status"`
	PaidAt      *time.Time   `json:"paid_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// IsPayable reports whether reminders may still be sent for the invoice.
func (i Invoice) IsPayable() bool {
	return i.Status != StatusPaid && i.Status != StatusVoid
}

// DaysOverdue returns whole days elapsed since the due date, never negative.
func (i Invoice) DaysOverdue(now time.Time) int {
	if !now.After(i.DueDate) {
		return 0
	}
	return int(now.Sub(i.DueDate) / (24 * time.Hour))
}

// PaidLate reports whether the invoice was settled after its due date.
func (i Invoice) PaidLate() bool {
	return i.PaidAt != nil && i.PaidAt.After(i.DueDate)
}
