package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
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
	Repo        domain.Repository
	ClientRepo  clientdomain.Repository
	InvoiceRepo invoicedomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	recovery    *config.RecoveryConfigHolder
	repo        domain.Repository
	clientRepo  clientdomain.Repository
	invoiceRepo invoicedomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("behavior.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		recovery:    p.Recovery,
		repo:        p.Repo,
		clientRepo:  p.ClientRepo,
		invoiceRepo: p.InvoiceRepo,
	}
}

func (s *Service) AnalyzeClient(ctx context.Context, orgID, clientID snowflake.ID) (domain.Profile, error) {
	if orgID == 0 {
		return domain.Profile{}, domain.ErrInvalidOrganization
	}
	if clientID == 0 {
		return domain.Profile{}, domain.ErrInvalidClient
	}

	client, err := s.clientRepo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.Profile{}, err
	}
	if client == nil {
		return domain.Profile{}, domain.ErrClientNotFound
	}

	history, err := s.loadHistory(ctx, orgID, clientID)
	if err != nil {
		return domain.Profile{}, err
	}

	now := s.clock.Now()
	profile := domain.Analyze(history, now, rulesFrom(s.recovery.Get()))
	profile.OrgID = orgID
	profile.ClientID = clientID
	profile.UpdatedAt = now

	existing, err := s.repo.FindByClient(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.Profile{}, err
	}
	if existing != nil {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.ID = s.genID.Generate()
		profile.CreatedAt = now
	}

	if err := s.repo.Upsert(ctx, s.db, &profile); err != nil {
		return domain.Profile{}, err
	}

	s.log.Info("behavior.analyzed",
		zap.String("org_id", orgID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("risk_category", string(profile.RiskCategory)),
		zap.Float64("churn_risk_score", profile.ChurnRiskScore),
		zap.Bool("discount_responsive", profile.DiscountResponsive),
	)
	return profile, nil
}

func (s *Service) AnalyzeOrganization(ctx context.Context, orgID snowflake.ID) (domain.AnalyzeOrganizationResult, error) {
	if orgID == 0 {
		return domain.AnalyzeOrganizationResult{}, domain.ErrInvalidOrganization
	}

	clientIDs, err := s.clientRepo.ListIDsWithInvoices(ctx, s.db, orgID)
	if err != nil {
		return domain.AnalyzeOrganizationResult{}, err
	}

	var result domain.AnalyzeOrganizationResult
	for _, clientID := range clientIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := s.AnalyzeClient(ctx, orgID, clientID); err != nil {
			result.Failed++
			s.log.Warn("behavior.analyze.failed",
				zap.String("org_id", orgID.String()),
				zap.String("client_id", clientID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Analyzed++
	}
	return result, nil
}

func (s *Service) GetProfile(ctx context.Context, orgID, clientID snowflake.ID) (domain.Profile, error) {
	if orgID == 0 {
		return domain.Profile{}, domain.ErrInvalidOrganization
	}
	profile, err := s.repo.FindByClient(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.Profile{}, err
	}
	if profile == nil {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return *profile, nil
}

func (s *Service) GetOrAnalyze(ctx context.Context, orgID, clientID snowflake.ID) (domain.Profile, error) {
	profile, err := s.GetProfile(ctx, orgID, clientID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return domain.Profile{}, err
	}
	return s.AnalyzeClient(ctx, orgID, clientID)
}

func (s *Service) loadHistory(ctx context.Context, orgID, clientID snowflake.ID) (domain.History, error) {
	invoices, err := s.invoiceRepo.ListPaidByClient(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.History{}, fmt.Errorf("list paid invoices: %w", err)
	}
	events, err := s.repo.ListContactEvents(ctx, s.db, orgID, clientID)
	if err != nil {
		return domain.History{}, fmt.Errorf("list contact events: %w", err)
	}

	paid := make([]domain.PaidInvoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.PaidAt == nil {
			continue
		}
		paid = append(paid, domain.PaidInvoice{
			InvoiceID: inv.ID,
			DueDate:   inv.DueDate,
			PaidAt:    *inv.PaidAt,
		})
	}
	return domain.History{PaidInvoices: paid, Events: events}, nil
}

func rulesFrom(cfg config.RecoveryConfig) domain.Rules {
	return domain.Rules{
		FallbackContactHour:     cfg.FallbackContactHour,
		FallbackContactDay:      cfg.FallbackContactDay,
		DiscountResponseWindow:  cfg.DiscountResponseWindow,
		ChurnLateWeight:         cfg.ChurnLateWeight,
		ChurnUnresponsiveWeight: cfg.ChurnUnresponsiveWeight,
	}
}
