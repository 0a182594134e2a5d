// Package receipt sends payment confirmations with a PDF receipt attached.
package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"github.com/smallbiznis/invoicerecovery/internal/invoice/format"
	"github.com/smallbiznis/invoicerecovery/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateLayout = "2 Jan 2006"

type Params struct {
	fx.In

	Sender channel.Sender
	PDF    pdf.Renderer
	Config config.Config
	Log    *zap.Logger
}

type Notifier struct {
	sender     channel.Sender
	pdf        pdf.Renderer
	senderName string
	log        *zap.Logger
}

func New(p Params) *Notifier {
	return &Notifier{
		sender:     p.Sender,
		pdf:        p.PDF,
		senderName: p.Config.Email.SMTPFromName,
		log:        p.Log.Named("receipt.notifier"),
	}
}

// SendPaymentReceipt e-mails the receipt PDF, or falls back to a WhatsApp text when the client has no e-mail.
func (n *Notifier) SendPaymentReceipt(ctx context.Context, client clientdomain.Client, invoice invoicedomain.Invoice, paidAt time.Time) error {
	vars := map[string]string{
		"client_name":    client.Name,
		"invoice_number": invoice.Number,
		"amount":         format.Amount(invoice.AmountCents, invoice.Currency),
		"paid_at":        paidAt.Format(dateLayout),
		"sender_name":    n.senderName,
	}

	msg := channel.Message{
		Template:  channel.TemplatePaymentReceipt,
		Variables: vars,
	}

	switch {
	case client.HasEmail():
		doc, err := n.pdf.RenderReceipt(ctx, pdf.ReceiptData{
			SenderName:    n.senderName,
			InvoiceNumber: invoice.Number,
			ClientName:    client.Name,
			ClientEmail:   client.Email,
			DueDate:       invoice.DueDate.Format(dateLayout),
			DatePaid:      vars["paid_at"],
			Amount:        vars["amount"],
			Reference:     invoice.ID.String(),
		})
		if err != nil {
			return fmt.Errorf("render receipt: %w", err)
		}
		msg.Channel = channel.Email
		msg.Recipient = client.Email
		msg.Attachments = []channel.Attachment{{
			FileName:    AttachmentName(invoice.Number),
			ContentType: "application/pdf",
			Content:     doc,
		}}
	case client.HasPhone():
		msg.Channel = channel.WhatsApp
		msg.Recipient = client.Phone
	default:
		n.log.Warn("receipt.skipped.no_contact",
			zap.String("org_id", invoice.OrgID.String()),
			zap.String("invoice_id", invoice.ID.String()),
		)
		return nil
	}

	delivery, err := n.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	n.log.Info("receipt.sent",
		zap.String("org_id", invoice.OrgID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("channel", string(msg.Channel)),
		zap.String("delivery_id", delivery.DeliveryID),
	)
	return nil
}

// AttachmentName builds a filesystem-safe PDF file name for the invoice number.
func AttachmentName(invoiceNumber string) string {
	name := slug.Make("receipt " + invoiceNumber)
	if name == "" {
		name = "receipt"
	}
	return name + ".pdf"
}
