package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"github.com/smallbiznis/invoicerecovery/internal/ingestion/domain"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"github.com/smallbiznis/invoicerecovery/internal/observability/tracing"
	"github.com/smallbiznis/invoicerecovery/pkg/phone"
	"github.com/smallbiznis/invoicerecovery/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/smallbiznis/invoicerecovery/internal/ingestion")

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	AppConfig      config.Config
	Recovery       *config.RecoveryConfigHolder
	InvoiceRepo    invoicedomain.Repository
	ClientRepo     clientdomain.Repository
	AutomationRepo automationdomain.Repository
	Automations    automationdomain.Service
	Behavior       behaviordomain.Service
	Receipts       automationdomain.ReceiptSender `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	region         string
	recovery       *config.RecoveryConfigHolder
	invoiceRepo    invoicedomain.Repository
	clientRepo     clientdomain.Repository
	automationRepo automationdomain.Repository
	automations    automationdomain.Service
	behavior       behaviordomain.Service
	receipts       automationdomain.ReceiptSender
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("ingestion.service"),
		clock:          p.Clock,
		region:         p.AppConfig.WhatsApp.DefaultRegion,
		recovery:       p.Recovery,
		invoiceRepo:    p.InvoiceRepo,
		clientRepo:     p.ClientRepo,
		automationRepo: p.AutomationRepo,
		automations:    p.Automations,
		behavior:       p.Behavior,
		receipts:       p.Receipts,
	}
}

// HandlePaymentWebhook settles the invoice and stops its automation. The automation stop
// sends the receipt; without an automation a receipt goes out only when this call
// performed the paid transition, so replays stay silent.
func (s *Service) HandlePaymentWebhook(ctx context.Context, orgID snowflake.ID, req domain.PaymentWebhook) (domain.PaymentResult, error) {
	if orgID == 0 {
		return domain.PaymentResult{}, automationdomain.ErrInvalidOrganization
	}
	if req.InvoiceID == 0 {
		return domain.PaymentResult{}, automationdomain.ErrInvalidInvoice
	}
	if !strings.EqualFold(strings.TrimSpace(req.Status), domain.PaymentStatusCompleted) {
		return domain.PaymentResult{Ignored: true}, nil
	}

	ctx, cid := correlation.EnsureCorrelationID(ctx)
	ctx, span := tracer.Start(ctx, "ingestion.payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("org_id", orgID.String()),
		attribute.String("invoice_id", req.InvoiceID.String()),
	)
	log := s.log.With(
		zap.String("correlation_id", cid),
		zap.String("org_id", orgID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
	)

	result, err := s.settle(ctx, log, orgID, req.InvoiceID)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "payment ingestion failed")
		return domain.PaymentResult{}, err
	}
	log.Info("ingestion.payment.processed",
		zap.Bool("invoice_paid", result.InvoicePaid),
		zap.Bool("automation_stopped", result.AutomationStopped),
		zap.Bool("receipt_sent", result.ReceiptSent),
	)
	return result, nil
}

func (s *Service) settle(ctx context.Context, log *zap.Logger, orgID, invoiceID snowflake.ID) (domain.PaymentResult, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if invoice == nil {
		return domain.PaymentResult{}, automationdomain.ErrInvoiceNotFound
	}
	if invoice.Status == invoicedomain.StatusVoid {
		return domain.PaymentResult{}, automationdomain.ErrInvoiceNotPayable
	}

	now := s.clock.Now()
	paid, err := s.invoiceRepo.MarkPaid(ctx, s.db, orgID, invoiceID, now)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	result := domain.PaymentResult{InvoicePaid: paid}

	active, err := s.automationRepo.FindActiveByInvoice(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return domain.PaymentResult{}, err
	}
	if active != nil {
		id := active.ID
		result.AutomationID = &id
		stopped, err := s.automations.MarkPaymentReceived(ctx, orgID, active.ID)
		if err != nil {
			return domain.PaymentResult{}, err
		}
		result.AutomationStopped = !stopped.IsActive()
	} else if paid {
		result.ReceiptSent = s.sendReceipt(ctx, log, orgID, invoice.ClientID, invoiceID, now)
	}

	if paid {
		s.refreshProfile(ctx, log, orgID, invoice.ClientID)
	}
	return result, nil
}

func (s *Service) sendReceipt(ctx context.Context, log *zap.Logger, orgID, clientID, invoiceID snowflake.ID, paidAt time.Time) bool {
	if s.receipts == nil {
		return false
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, orgID, invoiceID)
	if err != nil || invoice == nil {
		log.Warn("ingestion.receipt.skipped", zap.String("reason", "invoice_unavailable"), zap.Error(err))
		return false
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil || client == nil {
		log.Warn("ingestion.receipt.skipped", zap.String("reason", "client_unavailable"), zap.Error(err))
		return false
	}
	if err := s.receipts.SendPaymentReceipt(ctx, *client, *invoice, paidAt); err != nil {
		log.Warn("ingestion.receipt.failed", zap.Error(err))
		return false
	}
	return true
}

// refreshProfile re-scores the payer with the new payment. Failures only delay the update
// until the next batch analysis.
func (s *Service) refreshProfile(ctx context.Context, log *zap.Logger, orgID, clientID snowflake.ID) {
	if s.behavior == nil {
		return
	}
	if _, err := s.behavior.AnalyzeClient(ctx, orgID, clientID); err != nil {
		log.Warn("ingestion.profile.refresh_failed",
			zap.String("client_id", clientID.String()),
			zap.Error(err),
		)
	}
}

// HandleInboundReply attaches the reply to the newest unanswered reminder of the sender.
// Replies that announce a payment settle that reminder's invoice.
func (s *Service) HandleInboundReply(ctx context.Context, orgID snowflake.ID, req domain.InboundReply) (domain.ReplyResult, error) {
	if orgID == 0 {
		return domain.ReplyResult{}, automationdomain.ErrInvalidOrganization
	}
	body := strings.TrimSpace(req.Body)
	if strings.TrimSpace(req.Sender) == "" || body == "" {
		return domain.ReplyResult{}, domain.ErrInvalidReply
	}

	ctx, cid := correlation.EnsureCorrelationID(ctx)
	ctx, span := tracer.Start(ctx, "ingestion.reply")
	defer span.End()

	client, err := s.resolveSender(ctx, orgID, req)
	if err != nil {
		return domain.ReplyResult{}, err
	}
	event, err := s.automationRepo.FindLatestPendingEvent(ctx, s.db, orgID, client.ID)
	if err != nil {
		return domain.ReplyResult{}, err
	}
	if event == nil {
		return domain.ReplyResult{}, domain.ErrNoPendingReminder
	}

	at := req.ReceivedAt
	if at.IsZero() {
		at = s.clock.Now()
	}
	recorded, err := s.automationRepo.RecordResponse(ctx, s.db, orgID, event.ID, body, at.UTC())
	if err != nil {
		return domain.ReplyResult{}, err
	}
	if !recorded {
		return domain.ReplyResult{}, domain.ErrNoPendingReminder
	}

	result := domain.ReplyResult{
		ClientID:  client.ID,
		EventID:   event.ID,
		InvoiceID: event.InvoiceID,
	}
	log := s.log.With(
		zap.String("correlation_id", cid),
		zap.String("org_id", orgID.String()),
		zap.String("client_id", client.ID.String()),
		zap.String("event_id", event.ID.String()),
	)

	if mentionsPayment(body, s.recovery.Get().PaymentKeywords) {
		result.PaymentDetected = true
		payment, err := s.HandlePaymentWebhook(ctx, orgID, domain.PaymentWebhook{
			InvoiceID: event.InvoiceID,
			Status:    domain.PaymentStatusCompleted,
		})
		switch {
		case errors.Is(err, automationdomain.ErrInvoiceNotPayable):
			log.Warn("ingestion.reply.payment_ignored", zap.String("reason", "invoice_void"))
		case err != nil:
			return domain.ReplyResult{}, err
		default:
			result.Payment = &payment
		}
	}

	log.Info("ingestion.reply.recorded", zap.Bool("payment_detected", result.PaymentDetected))
	return result, nil
}

func (s *Service) resolveSender(ctx context.Context, orgID snowflake.ID, req domain.InboundReply) (*clientdomain.Client, error) {
	sender := strings.TrimSpace(req.Sender)
	var (
		client *clientdomain.Client
		err    error
	)
	if isEmailSender(req.Channel, sender) {
		client, err = s.clientRepo.FindByEmail(ctx, s.db, orgID, sender)
	} else {
		number, perr := phone.NormalizeE164(sender, s.region)
		if perr != nil {
			return nil, domain.ErrUnknownSender
		}
		client, err = s.clientRepo.FindByPhone(ctx, s.db, orgID, number)
	}
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrUnknownSender
	}
	return client, nil
}

// HandleDeliveryStatus moves an event forward to delivered or read.
func (s *Service) HandleDeliveryStatus(ctx context.Context, orgID snowflake.ID, req domain.DeliveryStatus) (bool, error) {
	if orgID == 0 {
		return false, automationdomain.ErrInvalidOrganization
	}
	deliveryID := strings.TrimSpace(req.DeliveryID)
	if deliveryID == "" {
		return false, domain.ErrInvalidDeliveryStatus
	}
	switch req.Status {
	case automationdomain.EventStatusDelivered, automationdomain.EventStatusRead:
	default:
		return false, domain.ErrInvalidDeliveryStatus
	}

	at := req.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	updated, err := s.automationRepo.UpdateDeliveryStatus(ctx, s.db, orgID, deliveryID, req.Status, at.UTC())
	if err != nil {
		return false, err
	}
	if updated {
		s.log.Debug("ingestion.delivery.updated",
			zap.String("org_id", orgID.String()),
			zap.String("delivery_id", deliveryID),
			zap.String("status", string(req.Status)),
		)
	}
	return updated, nil
}

// isEmailSender treats unlabeled addresses as e-mail unless they are gateway JIDs.
func isEmailSender(ch channel.Channel, sender string) bool {
	switch ch {
	case channel.Email:
		return true
	case channel.WhatsApp:
		return false
	}
	at := strings.LastIndexByte(sender, '@')
	if at <= 0 {
		return false
	}
	domainPart := strings.ToLower(sender[at+1:])
	return domainPart != "s.whatsapp.net" && domainPart != "c.us"
}
