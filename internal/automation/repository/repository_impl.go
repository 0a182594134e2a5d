package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	"gorm.io/gorm"
)

const automationColumns = `id, org_id, invoice_id, client_id, user_id, current_stage, status, channel,
	reminder_count, total_reminders_sent, next_scheduled_at, scheduled_hour, scheduled_day,
	used_personalized_strategy, discount_offered, last_sent_stage, claimed_until,
	stopped_at, stop_reason, payment_received, payment_received_at, version, created_at, updated_at`

const eventColumns = `id, org_id, automation_id, invoice_id, client_id, stage, channel, status,
	recipient, subject, content, delivery_id, discount_percent, sent_at, delivered_at, read_at,
	responded, response_content, responded_at, error_message, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, a *domain.AutomatedReminder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO automated_reminders (`+automationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.OrgID,
		a.InvoiceID,
		a.ClientID,
		a.UserID,
		a.CurrentStage,
		a.Status,
		a.Channel,
		a.ReminderCount,
		a.TotalRemindersSent,
		a.NextScheduledAt,
		a.ScheduledHour,
		a.ScheduledDay,
		a.UsedPersonalizedStrategy,
		a.DiscountOffered,
		a.LastSentStage,
		a.ClaimedUntil,
		a.StoppedAt,
		a.StopReason,
		a.PaymentReceived,
		a.PaymentReceivedAt,
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.AutomatedReminder, error) {
	return r.findOne(ctx, db, `org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindActiveByInvoice(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (*domain.AutomatedReminder, error) {
	return r.findOne(ctx, db, `org_id = ? AND invoice_id = ? AND status = ?`, orgID, invoiceID, domain.StatusActive)
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, after *domain.DueCursor, limit int) ([]domain.AutomatedReminder, error) {
	query := `SELECT ` + automationColumns + `
		 FROM automated_reminders
		 WHERE status = ?
		   AND next_scheduled_at <= ?
		   AND (claimed_until IS NULL OR claimed_until < ?)`
	args := []any{domain.StatusActive, now, now}
	if after != nil {
		query += ` AND (next_scheduled_at > ? OR (next_scheduled_at = ? AND id > ?))`
		args = append(args, after.At, after.At, after.ID)
	}
	query += ` ORDER BY next_scheduled_at, id LIMIT ?`
	args = append(args, limit)

	var items []domain.AutomatedReminder
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateIfVersion(ctx context.Context, db *gorm.DB, a *domain.AutomatedReminder) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE automated_reminders
		 SET current_stage = ?,
			status = ?,
			channel = ?,
			reminder_count = ?,
			total_reminders_sent = ?,
			next_scheduled_at = ?,
			scheduled_hour = ?,
			scheduled_day = ?,
			discount_offered = ?,
			last_sent_stage = ?,
			claimed_until = ?,
			stopped_at = ?,
			stop_reason = ?,
			payment_received = ?,
			payment_received_at = ?,
			version = version + 1,
			updated_at = ?
		 WHERE org_id = ? AND id = ? AND version = ?`,
		a.CurrentStage,
		a.Status,
		a.Channel,
		a.ReminderCount,
		a.TotalRemindersSent,
		a.NextScheduledAt,
		a.ScheduledHour,
		a.ScheduledDay,
		a.DiscountOffered,
		a.LastSentStage,
		a.ClaimedUntil,
		a.StoppedAt,
		a.StopReason,
		a.PaymentReceived,
		a.PaymentReceivedAt,
		a.UpdatedAt,
		a.OrgID,
		a.ID,
		a.Version,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	a.Version++
	return true, nil
}

func (r *repo) UpdateStopped(ctx context.Context, db *gorm.DB, a *domain.AutomatedReminder) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE automated_reminders
		 SET status = ?,
			next_scheduled_at = NULL,
			claimed_until = NULL,
			stopped_at = ?,
			stop_reason = ?,
			payment_received = ?,
			payment_received_at = ?,
			version = version + 1,
			updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		a.Status,
		a.StoppedAt,
		a.StopReason,
		a.PaymentReceived,
		a.PaymentReceivedAt,
		a.UpdatedAt,
		a.OrgID,
		a.ID,
		domain.StatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, e *domain.ReminderEvent) error {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO reminder_events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.OrgID,
		e.AutomationID,
		e.InvoiceID,
		e.ClientID,
		e.Stage,
		e.Channel,
		e.Status,
		e.Recipient,
		e.Subject,
		e.Content,
		e.DeliveryID,
		e.DiscountPercent,
		e.SentAt,
		e.DeliveredAt,
		e.ReadAt,
		e.Responded,
		e.ResponseContent,
		e.RespondedAt,
		e.ErrorMessage,
		metadata,
		e.CreatedAt,
		e.UpdatedAt,
	).Error
}

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, orgID, automationID snowflake.ID) ([]domain.ReminderEvent, error) {
	var events []domain.ReminderEvent
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM reminder_events
		 WHERE org_id = ? AND automation_id = ?
		 ORDER BY sent_at, id`,
		orgID,
		automationID,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) FindLatestPendingEvent(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) (*domain.ReminderEvent, error) {
	var event domain.ReminderEvent
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM reminder_events
		 WHERE org_id = ? AND client_id = ? AND status <> ? AND responded = ?
		 ORDER BY sent_at DESC, id DESC
		 LIMIT 1`,
		orgID,
		clientID,
		domain.EventStatusFailed,
		false,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) RecordResponse(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, content string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE reminder_events
		 SET responded = ?, response_content = ?, responded_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND responded = ?`,
		true,
		content,
		at,
		at,
		orgID,
		eventID,
		false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateDeliveryStatus(ctx context.Context, db *gorm.DB, orgID snowflake.ID, deliveryID string, status domain.EventStatus, at time.Time) (bool, error) {
	var result *gorm.DB
	switch status {
	case domain.EventStatusDelivered:
		result = db.WithContext(ctx).Exec(
			`UPDATE reminder_events
			 SET status = ?, delivered_at = COALESCE(delivered_at, ?), updated_at = ?
			 WHERE org_id = ? AND delivery_id = ? AND status = ?`,
			domain.EventStatusDelivered,
			at,
			at,
			orgID,
			deliveryID,
			domain.EventStatusSent,
		)
	case domain.EventStatusRead:
		result = db.WithContext(ctx).Exec(
			`UPDATE reminder_events
			 SET status = ?, delivered_at = COALESCE(delivered_at, ?), read_at = COALESCE(read_at, ?), updated_at = ?
			 WHERE org_id = ? AND delivery_id = ? AND status IN (?, ?)`,
			domain.EventStatusRead,
			at,
			at,
			at,
			orgID,
			deliveryID,
			domain.EventStatusSent,
			domain.EventStatusDelivered,
		)
	default:
		return false, nil
	}
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, args ...any) (*domain.AutomatedReminder, error) {
	var a domain.AutomatedReminder
	err := db.WithContext(ctx).Raw(
		`SELECT `+automationColumns+` FROM automated_reminders WHERE `+where+` ORDER BY id DESC LIMIT 1`,
		args...,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}
