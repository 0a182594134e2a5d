// Package domain defines the inbound events that feed reminder automations: payment
// notifications, customer replies and provider delivery receipts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
)

const PaymentStatusCompleted = "completed"

var (
	ErrInvalidWebhook        = errors.New("invalid_webhook")
	ErrInvalidReply          = errors.New("invalid_reply")
	ErrInvalidDeliveryStatus = errors.New("invalid_delivery_status")
	ErrUnknownSender         = errors.New("unknown_sender")
	ErrNoPendingReminder     = errors.New("no_pending_reminder")
)

type PaymentWebhook struct {
	InvoiceID snowflake.ID `json:"invoice_id"`
	Status    string       `json:"status"`
}

// PaymentResult reports what a payment notification changed. Replays report no changes.
type PaymentResult struct {
	Ignored           bool          `json:"ignored"`
	InvoicePaid       bool          `json:"invoice_paid"`
	AutomationID      *snowflake.ID `json:"automation_id,omitempty"`
	AutomationStopped bool          `json:"automation_stopped"`
	// ReceiptSent covers invoices without an automation; the automation stop sends its own.
	ReceiptSent       bool          `json:"receipt_sent"`
}

// InboundReply is a message received from a client. Sender is an e-mail address or a phone
// number in any format the default region can resolve.
type InboundReply struct {
	Channel    channel.Channel `json:"channel"`
	Sender     string          `json:"sender"`
	Body       string          `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
}

type ReplyResult struct {
	ClientID        snowflake.ID   `json:"client_id"`
	EventID         snowflake.ID   `json:"event_id"`
	InvoiceID       snowflake.ID   `json:"invoice_id"`
	PaymentDetected bool           `json:"payment_detected"`
	Payment         *PaymentResult `json:"payment,omitempty"`
}

type DeliveryStatus struct {
	DeliveryID string                       `json:"delivery_id"`
	Status     automationdomain.EventStatus `json:"status"`
	At         time.Time                    `json:"at"`
}

type Service interface {
	HandlePaymentWebhook(ctx context.Context, orgID snowflake.ID, req PaymentWebhook) (PaymentResult, error)
	HandleInboundReply(ctx context.Context, orgID snowflake.ID, req InboundReply) (ReplyResult, error)
	// HandleDeliveryStatus reports false when no event moved forward.
	HandleDeliveryStatus(ctx context.Context, orgID snowflake.ID, req DeliveryStatus) (bool, error)
}
