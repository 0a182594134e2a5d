// Package testing provides helpers that move automations through time in integration tests.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	"gorm.io/gorm"
)

// TimeAccelerator rewrites schedule columns so runs become due without waiting.
type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// MakeDue moves the next run of an active automation to just before at.
func (ta *TimeAccelerator) MakeDue(ctx context.Context, automationID snowflake.ID, at time.Time) error {
	at = at.UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE automated_reminders
		 SET next_scheduled_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		at.Add(-time.Minute),
		at,
		automationID,
		automationdomain.StatusActive,
	).Error
}

// MakeAllDue moves every active automation of an organization to be due at at.
func (ta *TimeAccelerator) MakeAllDue(ctx context.Context, orgID snowflake.ID, at time.Time) (int64, error) {
	at = at.UTC()
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE automated_reminders
		 SET next_scheduled_at = ?, updated_at = ?
		 WHERE org_id = ? AND status = ? AND next_scheduled_at > ?`,
		at.Add(-time.Minute),
		at,
		orgID,
		automationdomain.StatusActive,
		at,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExpireClaim drops a dispatch lease as if the holder had crashed.
func (ta *TimeAccelerator) ExpireClaim(ctx context.Context, automationID snowflake.ID, at time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE automated_reminders SET claimed_until = ? WHERE id = ?`,
		at.UTC().Add(-time.Second),
		automationID,
	).Error
}

// ScheduleInfo shows the dispatch state of an automation for debugging.
type ScheduleInfo struct {
	ID              snowflake.ID
	Status          automationdomain.Status
	CurrentStage    automationdomain.Stage
	NextScheduledAt *time.Time
	ClaimedUntil    *time.Time
	Version         int64
	TimeUntilDue    time.Duration
	Due             bool
}

func (ta *TimeAccelerator) GetScheduleInfo(ctx context.Context, automationID snowflake.ID, now time.Time) (*ScheduleInfo, error) {
	var row automationdomain.AutomatedReminder
	err := ta.db.WithContext(ctx).Raw(
		`SELECT id, status, current_stage, next_scheduled_at, claimed_until, version
		 FROM automated_reminders
		 WHERE id = ?`,
		automationID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}

	info := &ScheduleInfo{
		ID:              row.ID,
		Status:          row.Status,
		CurrentStage:    row.CurrentStage,
		NextScheduledAt: row.NextScheduledAt,
		ClaimedUntil:    row.ClaimedUntil,
		Version:         row.Version,
		Due:             row.IsDue(now),
	}
	if row.NextScheduledAt != nil {
		info.TimeUntilDue = row.NextScheduledAt.Sub(now)
	}
	return info, nil
}
