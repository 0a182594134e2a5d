package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	"github.com/smallbiznis/invoicerecovery/internal/automation/policy"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"github.com/smallbiznis/invoicerecovery/internal/lock"
	"github.com/smallbiznis/invoicerecovery/internal/observability/metrics"
	"github.com/smallbiznis/invoicerecovery/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Recovery    *config.RecoveryConfigHolder
	Locker      lock.Locker
	Repo        domain.Repository
	InvoiceRepo invoicedomain.Repository
	ClientRepo  clientdomain.Repository
	Behavior    behaviordomain.Service
	Receipts    domain.ReceiptSender
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	recovery    *config.RecoveryConfigHolder
	locker      lock.Locker
	repo        domain.Repository
	invoiceRepo invoicedomain.Repository
	clientRepo  clientdomain.Repository
	behavior    behaviordomain.Service
	receipts    domain.ReceiptSender
	metrics     *metrics.RecoveryMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("automation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		recovery:    p.Recovery,
		locker:      p.Locker,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		clientRepo:  p.ClientRepo,
		behavior:    p.Behavior,
		receipts:    p.Receipts,
		metrics:     metrics.Recovery(),
	}
}

func (s *Service) Start(ctx context.Context, orgID snowflake.ID, req domain.StartRequest) (domain.AutomatedReminder, error) {
	if orgID == 0 {
		return domain.AutomatedReminder{}, domain.ErrInvalidOrganization
	}
	if req.InvoiceID == 0 {
		return domain.AutomatedReminder{}, domain.ErrInvalidInvoice
	}

	var started domain.AutomatedReminder
	err := lock.WithLock(ctx, s.locker, lock.InvoiceKey(int64(orgID), int64(req.InvoiceID)), lock.Options{}, func(ctx context.Context) error {
		invoice, err := s.invoiceRepo.FindByID(ctx, s.db, orgID, req.InvoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrInvoiceNotFound
		}
		if !invoice.IsPayable() {
			return domain.ErrInvoiceNotPayable
		}

		existing, err := s.repo.FindActiveByInvoice(ctx, s.db, orgID, invoice.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAutomationAlreadyActive
		}

		client, err := s.clientRepo.FindByID(ctx, s.db, orgID, invoice.ClientID)
		if err != nil {
			return err
		}
		if client == nil {
			return domain.ErrClientNotFound
		}

		now := s.clock.Now()
		cfg := s.recovery.Get()
		a := domain.AutomatedReminder{
			ID:           s.genID.Generate(),
			OrgID:        orgID,
			InvoiceID:    invoice.ID,
			ClientID:     client.ID,
			UserID:       req.UserID,
			CurrentStage: domain.StageGentle,
			Status:       domain.StatusActive,
			Channel:      channel.Email,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		next := now.Add(cfg.InitialDelay)

		if req.Smart {
			profile, err := s.behavior.GetOrAnalyze(ctx, orgID, client.ID)
			if err != nil {
				return err
			}
			a.Channel = reachableChannel(profile.PreferredChannel, *client)
			a.CurrentStage = policy.RecommendedStage(invoice.DaysOverdue(now), profile.RiskCategory, policy.ConfigFrom(cfg))
			a.SetSendTime(profile.OptimalContactHour, profile.OptimalContactDay)
			a.UsedPersonalizedStrategy = true
			next = policy.NextOccurrence(next, profile.OptimalContactHour, profile.OptimalWeekday())
		}
		a.NextScheduledAt = &next

		if err := s.repo.Insert(ctx, s.db, &a); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAutomationAlreadyActive
			}
			return err
		}
		started = a
		return nil
	})
	if err != nil {
		return domain.AutomatedReminder{}, err
	}

	s.metrics.IncTransition("none", string(started.CurrentStage))
	s.log.Info("automation.started",
		zap.String("org_id", orgID.String()),
		zap.String("automation_id", started.ID.String()),
		zap.String("invoice_id", started.InvoiceID.String()),
		zap.String("stage", string(started.CurrentStage)),
		zap.String("channel", string(started.Channel)),
		zap.Bool("personalized", started.UsedPersonalizedStrategy),
		zap.Time("next_scheduled_at", *started.NextScheduledAt),
	)
	return started, nil
}

func (s *Service) Stop(ctx context.Context, orgID, automationID snowflake.ID) (domain.AutomatedReminder, error) {
	a, changed, err := s.complete(ctx, orgID, automationID, func(a *domain.AutomatedReminder, now time.Time) bool {
		return a.Stop(domain.StopReasonManual, now)
	})
	if err != nil {
		return domain.AutomatedReminder{}, err
	}
	if changed {
		s.log.Info("automation.stopped",
			zap.String("org_id", orgID.String()),
			zap.String("automation_id", automationID.String()),
			zap.String("reason", string(domain.StopReasonManual)),
		)
	}
	return a, nil
}

func (s *Service) MarkPaymentReceived(ctx context.Context, orgID, automationID snowflake.ID) (domain.AutomatedReminder, error) {
	a, changed, err := s.complete(ctx, orgID, automationID, func(a *domain.AutomatedReminder, now time.Time) bool {
		return a.MarkPaymentReceived(now)
	})
	if err != nil {
		return domain.AutomatedReminder{}, err
	}
	if !changed {
		return a, nil
	}

	s.log.Info("automation.payment_received",
		zap.String("org_id", orgID.String()),
		zap.String("automation_id", automationID.String()),
		zap.String("invoice_id", a.InvoiceID.String()),
	)
	s.sendReceipt(ctx, a)
	return a, nil
}

// complete applies a stopping transition under the automation lock. The write only
// requires the row to still be active, so it wins over any in-flight dispatch claim.
func (s *Service) complete(
	ctx context.Context,
	orgID, automationID snowflake.ID,
	transition func(a *domain.AutomatedReminder, now time.Time) bool,
) (domain.AutomatedReminder, bool, error) {
	if orgID == 0 {
		return domain.AutomatedReminder{}, false, domain.ErrInvalidOrganization
	}
	if automationID == 0 {
		return domain.AutomatedReminder{}, false, domain.ErrInvalidAutomation
	}

	var (
		result  domain.AutomatedReminder
		changed bool
	)
	err := lock.WithLock(ctx, s.locker, lock.AutomationKey(int64(orgID), int64(automationID)), lock.Options{}, func(ctx context.Context) error {
		a, err := s.repo.FindByID(ctx, s.db, orgID, automationID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.ErrAutomationNotFound
		}

		from := a.CurrentStage
		if !transition(a, s.clock.Now()) {
			result = *a
			return nil
		}
		ok, err := s.repo.UpdateStopped(ctx, s.db, a)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.repo.FindByID(ctx, s.db, orgID, automationID)
			if err != nil {
				return err
			}
			if current == nil {
				return domain.ErrAutomationNotFound
			}
			result = *current
			return nil
		}
		a.Version++
		s.metrics.IncTransition(string(from), string(domain.StatusCompleted))
		result = *a
		changed = true
		return nil
	})
	return result, changed, err
}

func (s *Service) sendReceipt(ctx context.Context, a domain.AutomatedReminder) {
	if s.receipts == nil {
		return
	}
	log := s.log.With(
		zap.String("org_id", a.OrgID.String()),
		zap.String("invoice_id", a.InvoiceID.String()),
	)

	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, a.OrgID, a.InvoiceID)
	if err != nil || invoice == nil {
		log.Warn("automation.receipt.skipped", zap.String("reason", "invoice_unavailable"), zap.Error(err))
		return
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, a.OrgID, a.ClientID)
	if err != nil || client == nil {
		log.Warn("automation.receipt.skipped", zap.String("reason", "client_unavailable"), zap.Error(err))
		return
	}

	paidAt := s.clock.Now()
	if invoice.PaidAt != nil {
		paidAt = *invoice.PaidAt
	} else if a.PaymentReceivedAt != nil {
		paidAt = *a.PaymentReceivedAt
	}
	if err := s.receipts.SendPaymentReceipt(ctx, *client, *invoice, paidAt); err != nil {
		log.Warn("automation.receipt.failed", zap.Error(err))
	}
}

func (s *Service) Reschedule(ctx context.Context, orgID, automationID snowflake.ID, at time.Time) (domain.AutomatedReminder, error) {
	if orgID == 0 {
		return domain.AutomatedReminder{}, domain.ErrInvalidOrganization
	}
	if automationID == 0 {
		return domain.AutomatedReminder{}, domain.ErrInvalidAutomation
	}
	if at.IsZero() {
		return domain.AutomatedReminder{}, domain.ErrInvalidSchedule
	}

	var result domain.AutomatedReminder
	err := lock.WithLock(ctx, s.locker, lock.AutomationKey(int64(orgID), int64(automationID)), lock.Options{}, func(ctx context.Context) error {
		a, err := s.repo.FindByID(ctx, s.db, orgID, automationID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.ErrAutomationNotFound
		}
		if err := a.Reschedule(at, s.clock.Now()); err != nil {
			return err
		}
		ok, err := s.repo.UpdateIfVersion(ctx, s.db, a)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrVersionConflict
		}
		result = *a
		return nil
	})
	if err != nil {
		return domain.AutomatedReminder{}, err
	}

	s.log.Info("automation.rescheduled",
		zap.String("org_id", orgID.String()),
		zap.String("automation_id", automationID.String()),
		zap.Time("next_scheduled_at", *result.NextScheduledAt),
	)
	return result, nil
}

func (s *Service) MakeDueNow(ctx context.Context, orgID, automationID snowflake.ID) (domain.AutomatedReminder, error) {
	return s.Reschedule(ctx, orgID, automationID, s.clock.Now())
}

func (s *Service) Get(ctx context.Context, orgID, automationID snowflake.ID) (domain.AutomatedReminder, error) {
	if orgID == 0 {
		return domain.AutomatedReminder{}, domain.ErrInvalidOrganization
	}
	a, err := s.repo.FindByID(ctx, s.db, orgID, automationID)
	if err != nil {
		return domain.AutomatedReminder{}, err
	}
	if a == nil {
		return domain.AutomatedReminder{}, domain.ErrAutomationNotFound
	}
	return *a, nil
}

func (s *Service) GetActiveByInvoice(ctx context.Context, orgID, invoiceID snowflake.ID) (domain.Detail, error) {
	if orgID == 0 {
		return domain.Detail{}, domain.ErrInvalidOrganization
	}
	if invoiceID == 0 {
		return domain.Detail{}, domain.ErrInvalidInvoice
	}
	a, err := s.repo.FindActiveByInvoice(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return domain.Detail{}, err
	}
	if a == nil {
		return domain.Detail{}, domain.ErrAutomationNotFound
	}
	events, err := s.repo.ListEvents(ctx, s.db, orgID, a.ID)
	if err != nil {
		return domain.Detail{}, err
	}
	return domain.Detail{Automation: *a, Events: events}, nil
}

func (s *Service) ListEvents(ctx context.Context, orgID, automationID snowflake.ID) ([]domain.ReminderEvent, error) {
	if _, err := s.Get(ctx, orgID, automationID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, s.db, orgID, automationID)
}

// reachableChannel keeps the preferred channel only when the client has an address for it.
func reachableChannel(preferred channel.Channel, client clientdomain.Client) channel.Channel {
	if preferred == channel.WhatsApp && client.HasPhone() {
		return channel.WhatsApp
	}
	return channel.Email
}
