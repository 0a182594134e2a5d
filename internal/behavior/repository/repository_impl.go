package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"gorm.io/gorm"
)

const profileColumns = `id, org_id, client_id, avg_payment_days, on_time_payments, late_payments,
	on_time_rate, response_rate, preferred_channel, optimal_contact_hour, optimal_contact_day,
	discount_responsive, effective_discount_rate, churn_risk_score, risk_category,
	last_analyzed_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, p *domain.Profile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO client_behavior_profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, client_id) DO UPDATE SET
			avg_payment_days = excluded.avg_payment_days,
			on_time_payments = excluded.on_time_payments,
			late_payments = excluded.late_payments,
			on_time_rate = excluded.on_time_rate,
			response_rate = excluded.response_rate,
			preferred_channel = excluded.preferred_channel,
			optimal_contact_hour = excluded.optimal_contact_hour,
			optimal_contact_day = excluded.optimal_contact_day,
			discount_responsive = excluded.discount_responsive,
			effective_discount_rate = excluded.effective_discount_rate,
			churn_risk_score = excluded.churn_risk_score,
			risk_category = excluded.risk_category,
			last_analyzed_at = excluded.last_analyzed_at,
			updated_at = excluded.updated_at`,
		p.ID,
		p.OrgID,
		p.ClientID,
		p.AvgPaymentDays,
		p.OnTimePayments,
		p.LatePayments,
		p.OnTimeRate,
		p.ResponseRate,
		p.PreferredChannel,
		p.OptimalContactHour,
		p.OptimalContactDay,
		p.DiscountResponsive,
		p.EffectiveDiscountRate,
		p.ChurnRiskScore,
		p.RiskCategory,
		p.LastAnalyzedAt,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByClient(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT `+profileColumns+`
		 FROM client_behavior_profiles
		 WHERE org_id = ? AND client_id = ?`,
		orgID,
		clientID,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

type contactEventRow struct {
	InvoiceID       snowflake.ID
	Channel         string
	Status          string
	SentAt          time.Time
	Responded       bool
	RespondedAt     *time.Time
	DiscountPercent *float64
}

func (r *repo) ListContactEvents(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]domain.ContactEvent, error) {
	var rows []contactEventRow
	err := db.WithContext(ctx).Raw(
		`SELECT invoice_id, channel, status, sent_at, responded, responded_at, discount_percent
		 FROM reminder_events
		 WHERE org_id = ? AND client_id = ?
		 ORDER BY sent_at, id`,
		orgID,
		clientID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.ContactEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.ContactEvent{
			InvoiceID:       row.InvoiceID,
			Channel:         channel.Channel(row.Channel),
			Failed:          row.Status == "failed",
			SentAt:          row.SentAt,
			Responded:       row.Responded,
			RespondedAt:     row.RespondedAt,
			DiscountPercent: row.DiscountPercent,
		})
	}
	return events, nil
}
