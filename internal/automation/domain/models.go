// Package domain holds the reminder automation state machine and its event log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"gorm.io/datatypes"
)

// Stage is an escalation step. Stages only advance in the order of Stages.
type Stage string

const (
	StageGentle   Stage = "gentle"
	StageStandard Stage = "standard"
	StageUrgent   Stage = "urgent"
	StageFinal    Stage = "final"
)

var Stages = []Stage{StageGentle, StageStandard, StageUrgent, StageFinal}

// Index returns the position of the stage in Stages, or -1 when unknown.
func (s Stage) Index() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Next returns the following stage; ok is false at the final stage.
func (s Stage) Next() (Stage, bool) {
	idx := s.Index()
	if idx < 0 || idx == len(Stages)-1 {
		return s, false
	}
	return Stages[idx+1], true
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type StopReason string

const (
	StopReasonPaymentReceived StopReason = "payment_received"
	StopReasonManual          StopReason = "manual"
	StopReasonStageExhausted  StopReason = "stage_exhausted"
)

// AutomatedReminder drives the reminder escalation of one invoice.
type AutomatedReminder struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"organization_id"`
	InvoiceID snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	ClientID  snowflake.ID `gorm:"not null" json:"client_id"`
	UserID    snowflake.ID `json:"user_id"`

	CurrentStage Stage           `gorm:"type:text;not null" json:"current_stage"`
	Status       Status          `gorm:"type:text;not null" json:"status"`
	Channel      channel.Channel `gorm:"type:text;not null" json:"channel"`

	ReminderCount      int `json:"reminder_count"`
	TotalRemindersSent int `json:"total_reminders_sent"`

	NextScheduledAt          *time.Time `json:"next_scheduled_at,omitempty"`
	ScheduledHour            *int       `json:"scheduled_hour,omitempty"`
	ScheduledDay             *int       `json:"scheduled_day,omitempty"`
	UsedPersonalizedStrategy bool       `json:"used_personalized_strategy"`
	DiscountOffered          *float64   `json:"discount_offered,omitempty"`
	LastSentStage            *Stage     `json:"last_sent_stage,omitempty"`
	ClaimedUntil             *time.Time `json:"-"`

	StoppedAt         *time.Time  `json:"stopped_at,omitempty"`
	StopReason        *StopReason `json:"stop_reason,omitempty"`
	PaymentReceived   bool        `json:"payment_received"`
	PaymentReceivedAt *time.Time  `json:"payment_received_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the database table name.
func (AutomatedReminder) TableName() string { return "automated_reminders" }

type EventStatus string

const (
	EventStatusSent      EventStatus = "sent"
	EventStatusDelivered EventStatus = "delivered"
	EventStatusRead      EventStatus = "read"
	EventStatusFailed    EventStatus = "failed"
)

// ReminderEvent records one send attempt. Rows are append-only apart from
// delivery, read and response updates.
type ReminderEvent struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"not null;index" json:"organization_id"`
	AutomationID snowflake.ID `gorm:"not null;index" json:"automation_id"`
	InvoiceID    snowflake.ID `gorm:"not null" json:"invoice_id"`
	ClientID     snowflake.ID `gorm:"not null" json:"client_id"`

	Stage           Stage           `gorm:"type:text;not null" json:"stage"`
	Channel         channel.Channel `gorm:"type:text;not null" json:"channel"`
	Status          EventStatus     `gorm:"type:text;not null" json:"status"`
	Recipient       string          `json:"recipient"`
	Subject         string          `json:"subject"`
	Content         string          `json:"content"`
	DeliveryID      *string         `json:"delivery_id,omitempty"`
	DiscountPercent *float64        `json:"discount_percent,omitempty"`

	SentAt          time.Time  `json:"sent_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	Responded       bool       `json:"responded"`
	ResponseContent *string    `json:"response_content,omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TableName sets the database table name.
func (ReminderEvent) TableName() string { return "reminder_events" }
