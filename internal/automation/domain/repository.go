package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DueCursor is the keyset position of the last due automation returned by ListDue.
type DueCursor struct {
	At time.Time
	ID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, automation *AutomatedReminder) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*AutomatedReminder, error)
	FindActiveByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (*AutomatedReminder, error)
	// ListDue returns unclaimed active automations due at now across all organizations,
	// ordered by (next_scheduled_at, id) and starting after the cursor when given.
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, after *DueCursor, limit int) ([]AutomatedReminder, error)
	// UpdateIfVersion writes the mutable state when the stored version still equals
	// automation.Version and bumps the version on success.
	UpdateIfVersion(ctx context.Context, db *gorm.DB, automation *AutomatedReminder) (bool, error)
	// UpdateStopped writes the stop fields of a completed automation when the stored row is
	// still active, regardless of version.
	UpdateStopped(ctx context.Context, db *gorm.DB, automation *AutomatedReminder) (bool, error)

	InsertEvent(ctx context.Context, db *gorm.DB, event *ReminderEvent) error
	ListEvents(ctx context.Context, db *gorm.DB, orgID, automationID snowflake.ID) ([]ReminderEvent, error)
	// FindLatestPendingEvent returns the most recent non-failed, unanswered event sent to the client.
	FindLatestPendingEvent(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) (*ReminderEvent, error)
	RecordResponse(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, content string, at time.Time) (bool, error)
	// UpdateDeliveryStatus moves an event forward to delivered or read; it never moves backwards.
	UpdateDeliveryStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID, deliveryID string, status EventStatus, at time.Time) (bool, error)
}
