package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
)

type StartRequest struct {
	InvoiceID snowflake.ID `json:"invoice_id"`
	UserID    snowflake.ID `json:"user_id"`
	// Smart derives channel, stage and send time from the client's behavior profile.
	Smart bool `json:"smart"`
}

// Detail is an automation together with its event log.
type Detail struct {
	Automation AutomatedReminder `json:"automation"`
	Events     []ReminderEvent   `json:"events"`
}

type Service interface {
	Start(ctx context.Context, orgID snowflake.ID, req StartRequest) (AutomatedReminder, error)
	// Stop completes an automation manually. Stopping a completed automation is a no-op.
	Stop(ctx context.Context, orgID, automationID snowflake.ID) (AutomatedReminder, error)
	// MarkPaymentReceived completes the automation and sends a payment receipt.
	MarkPaymentReceived(ctx context.Context, orgID, automationID snowflake.ID) (AutomatedReminder, error)
	Reschedule(ctx context.Context, orgID, automationID snowflake.ID, at time.Time) (AutomatedReminder, error)
	// MakeDueNow reschedules the automation so the next sweep dispatches it.
	MakeDueNow(ctx context.Context, orgID, automationID snowflake.ID) (AutomatedReminder, error)
	Get(ctx context.Context, orgID, automationID snowflake.ID) (AutomatedReminder, error)
	GetActiveByInvoice(ctx context.Context, orgID, invoiceID snowflake.ID) (Detail, error)
	ListEvents(ctx context.Context, orgID, automationID snowflake.ID) ([]ReminderEvent, error)
}

// ReceiptSender delivers a payment confirmation to the client.
type ReceiptSender interface {
	SendPaymentReceipt(ctx context.Context, client clientdomain.Client, invoice invoicedomain.Invoice, paidAt time.Time) error
}
