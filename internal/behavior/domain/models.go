package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
)

type RiskCategory string

const (
	RiskLow    RiskCategory = "low"
	RiskMedium RiskCategory = "medium"
	RiskHigh   RiskCategory = "high"
)

const (
	highRiskThreshold   = 0.7
	mediumRiskThreshold = 0.4

	// MaxDiscountPercent bounds every recommended discount.
	MaxDiscountPercent = 10.0
)

// Profile is the derived payment and contact behavior of one client.
type Profile struct {
	ID       snowflake.ID `json:"id"`
	OrgID    snowflake.ID `json:"organization_id"`
	ClientID snowflake.ID `json:"client_id"`

	AvgPaymentDays float64 `json:"avg_payment_days"`
	OnTimePayments int     `json:"on_time_payments"`
	LatePayments   int     `json:"late_payments"`
	OnTimeRate     float64 `json:"on_time_rate"`
	ResponseRate   float64 `json:"response_rate"`

	PreferredChannel   channel.Channel `json:"preferred_channel"`
	OptimalContactHour int             `json:"optimal_contact_hour"`
	OptimalContactDay  int             `json:"optimal_contact_day"`

	DiscountResponsive    bool    `json:"discount_responsive"`
	EffectiveDiscountRate float64 `json:"effective_discount_rate"`

	ChurnRiskScore float64      `json:"churn_risk_score"`
	RiskCategory   RiskCategory `json:"risk_category"`

	LastAnalyzedAt time.Time `json:"last_analyzed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "client_behavior_profiles" }

// PaidInvoices is the number of settled invoices the profile was derived from.
func (p Profile) PaidInvoices() int {
	return p.OnTimePayments + p.LatePayments
}

// QualifiesForDiscount reports whether reminders should carry a discount offer.
// A discount-responsive client also needs minPaidInvoices settled invoices on record.
func (p Profile) QualifiesForDiscount(minPaidInvoices int) bool {
	return p.DiscountResponsive && p.EffectiveDiscountRate > 0 && p.PaidInvoices() >= minPaidInvoices
}

// RecommendedDiscount is the effective discount rate rounded to a whole percent and capped at MaxDiscountPercent.
func (p Profile) RecommendedDiscount() float64 {
	if !p.DiscountResponsive || p.EffectiveDiscountRate <= 0 {
		return 0
	}
	return min(math.Round(p.EffectiveDiscountRate), MaxDiscountPercent)
}

// OptimalWeekday returns the optimal contact day as a time.Weekday.
func (p Profile) OptimalWeekday() time.Weekday {
	return time.Weekday(p.OptimalContactDay)
}

// RiskCategoryFor buckets a churn-risk score.
func RiskCategoryFor(score float64) RiskCategory {
	switch {
	case score >= highRiskThreshold:
		return RiskHigh
	case score >= mediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}
