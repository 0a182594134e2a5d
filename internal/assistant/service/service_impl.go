package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	ingestiondomain "github.com/smallbiznis/invoicerecovery/internal/ingestion/domain"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"github.com/smallbiznis/invoicerecovery/internal/invoice/format"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultTimeout = 20 * time.Second

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	AppConfig   config.Config
	Generator   domain.Generator
	InvoiceRepo invoicedomain.Repository
	Automations automationdomain.Service
	Behavior    behaviordomain.Service
	Ingestion   ingestiondomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	timeout     time.Duration
	generator   domain.Generator
	invoiceRepo invoicedomain.Repository
	automations automationdomain.Service
	behavior    behaviordomain.Service
	ingestion   ingestiondomain.Service
}

func New(p Params) domain.Service {
	timeout := p.AppConfig.Assistant.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("assistant.service"),
		clock:       p.Clock,
		timeout:     timeout,
		generator:   p.Generator,
		invoiceRepo: p.InvoiceRepo,
		automations: p.Automations,
		behavior:    p.Behavior,
		ingestion:   p.Ingestion,
	}
}

func (s *Service) Chat(ctx context.Context, orgID snowflake.ID, req domain.ChatRequest) (domain.ChatResponse, error) {
	if orgID == 0 {
		return domain.ChatResponse{}, automationdomain.ErrInvalidOrganization
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return domain.ChatResponse{}, domain.ErrInvalidPrompt
	}

	promptContext, insights, err := s.buildContext(ctx, orgID, req)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	completion, err := s.generator.Complete(genCtx, domain.CompletionRequest{Prompt: message, Context: promptContext})
	if err != nil {
		s.log.Warn("assistant.completion.failed",
			zap.String("org_id", orgID.String()),
			zap.Duration("timeout", s.timeout),
			zap.Error(err),
		)
		if errors.Is(err, domain.ErrAssistantUnavailable) {
			return domain.ChatResponse{}, err
		}
		return domain.ChatResponse{}, fmt.Errorf("%w: %v", domain.ErrAssistantUnavailable, err)
	}

	actions := make([]domain.RawAction, 0, len(completion.SuggestedActions))
	for _, raw := range completion.SuggestedActions {
		if _, err := domain.ParseAction(raw); err != nil {
			s.log.Debug("assistant.action.dropped", zap.String("type", raw.Type), zap.Error(err))
			continue
		}
		actions = append(actions, raw)
	}
	return domain.ChatResponse{Reply: completion.Content, Actions: actions, Insights: insights}, nil
}

// buildContext collects the invoice, automation and profile facts the model answers from.
func (s *Service) buildContext(ctx context.Context, orgID snowflake.ID, req domain.ChatRequest) (map[string]any, []domain.Insight, error) {
	promptContext := map[string]any{"now": s.clock.Now().Format(time.RFC3339)}
	clientID := req.ClientID

	if req.InvoiceID != nil {
		invoice, err := s.invoiceRepo.FindByID(ctx, s.db, orgID, *req.InvoiceID)
		if err != nil {
			return nil, nil, err
		}
		if invoice == nil {
			return nil, nil, automationdomain.ErrInvoiceNotFound
		}
		promptContext["invoice"] = map[string]any{
			"invoice_id":   invoice.ID.String(),
			"number":       invoice.Number,
			"amount":       format.Amount(invoice.AmountCents, invoice.Currency),
			"due_date":     invoice.DueDate.Format(time.DateOnly),
			"status":       string(invoice.Status),
			"days_overdue": invoice.DaysOverdue(s.clock.Now()),
		}
		if clientID == nil {
			id := invoice.ClientID
			clientID = &id
		}

		detail, err := s.automations.GetActiveByInvoice(ctx, orgID, invoice.ID)
		switch {
		case err == nil:
			promptContext["automation"] = map[string]any{
				"automation_id":     detail.Automation.ID.String(),
				"stage":             string(detail.Automation.CurrentStage),
				"channel":           string(detail.Automation.Channel),
				"reminders_sent":    detail.Automation.TotalRemindersSent,
				"next_scheduled_at": detail.Automation.NextScheduledAt,
				"events":            len(detail.Events),
			}
		case !errors.Is(err, automationdomain.ErrAutomationNotFound):
			return nil, nil, err
		}
	}

	var insights []domain.Insight
	if clientID != nil {
		profile, err := s.profile(ctx, orgID, *clientID)
		if err != nil {
			return nil, nil, err
		}
		insights = domain.InsightsFor(profile)
		promptContext["client_id"] = clientID.String()
		if profile != nil {
			promptContext["profile"] = profile
		}
		promptContext["insights"] = insights
	}
	return promptContext, insights, nil
}

func (s *Service) profile(ctx context.Context, orgID, clientID snowflake.ID) (*behaviordomain.Profile, error) {
	p, err := s.behavior.GetProfile(ctx, orgID, clientID)
	if errors.Is(err, behaviordomain.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Insights(ctx context.Context, orgID, clientID snowflake.ID) ([]domain.Insight, error) {
	if orgID == 0 {
		return nil, automationdomain.ErrInvalidOrganization
	}
	if clientID == 0 {
		return nil, behaviordomain.ErrInvalidClient
	}
	p, err := s.profile(ctx, orgID, clientID)
	if err != nil {
		return nil, err
	}
	return domain.InsightsFor(p), nil
}

// Execute runs a suggested action. Actions carry their own IDs; the organization scopes
// every lookup so an action cannot reach another tenant.
func (s *Service) Execute(ctx context.Context, orgID snowflake.ID, raw domain.RawAction) (domain.ActionResult, error) {
	if orgID == 0 {
		return domain.ActionResult{}, automationdomain.ErrInvalidOrganization
	}
	action, err := domain.ParseAction(raw)
	if err != nil {
		return domain.ActionResult{}, err
	}

	result := domain.ActionResult{Type: action.Type()}
	switch a := action.(type) {
	case domain.SendReminder:
		automation, err := s.sendReminder(ctx, orgID, a)
		if err != nil {
			return domain.ActionResult{}, err
		}
		result.Automation = &automation
	case domain.MarkPaid:
		payment, err := s.ingestion.HandlePaymentWebhook(ctx, orgID, ingestiondomain.PaymentWebhook{
			InvoiceID: a.InvoiceID,
			Status:    ingestiondomain.PaymentStatusCompleted,
		})
		if err != nil {
			return domain.ActionResult{}, err
		}
		result.Payment = &payment
	case domain.Analyze:
		profile, err := s.behavior.AnalyzeClient(ctx, orgID, a.ClientID)
		if err != nil {
			return domain.ActionResult{}, err
		}
		result.Profile = &profile
	case domain.ScheduleFollowup:
		automation, err := s.automations.Reschedule(ctx, orgID, a.AutomationID, a.RunAt(s.clock.Now()))
		if err != nil {
			return domain.ActionResult{}, err
		}
		result.Automation = &automation
	default:
		return domain.ActionResult{}, fmt.Errorf("%w: %T", domain.ErrUnsupportedAction, action)
	}

	s.log.Info("assistant.action.executed",
		zap.String("org_id", orgID.String()),
		zap.String("type", string(result.Type)),
	)
	return result, nil
}

func (s *Service) sendReminder(ctx context.Context, orgID snowflake.ID, a domain.SendReminder) (automationdomain.AutomatedReminder, error) {
	detail, err := s.automations.GetActiveByInvoice(ctx, orgID, a.InvoiceID)
	if err == nil {
		return s.automations.MakeDueNow(ctx, orgID, detail.Automation.ID)
	}
	if !errors.Is(err, automationdomain.ErrAutomationNotFound) {
		return automationdomain.AutomatedReminder{}, err
	}
	return s.automations.Start(ctx, orgID, automationdomain.StartRequest{InvoiceID: a.InvoiceID, Smart: a.Smart})
}
