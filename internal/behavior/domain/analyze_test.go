package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"github.com/stretchr/testify/assert"
)

var testRules = Rules{
	FallbackContactHour:     10,
	FallbackContactDay:      int(time.Tuesday),
	DiscountResponseWindow:  7 * 24 * time.Hour,
	ChurnLateWeight:         0.6,
	ChurnUnresponsiveWeight: 0.4,
}

func ptr[T any](v T) *T { return &v }

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	now := day(20)
	p := Analyze(History{}, now, testRules)

	assert.Equal(t, 0.0, p.AvgPaymentDays)
	assert.Equal(t, 0.0, p.OnTimeRate)
	assert.Equal(t, 0.0, p.ResponseRate)
	assert.Equal(t, channel.Email, p.PreferredChannel)
	assert.Equal(t, 10, p.OptimalContactHour)
	assert.Equal(t, int(time.Tuesday), p.OptimalContactDay)
	assert.False(t, p.DiscountResponsive)
	assert.Equal(t, 0.0, p.ChurnRiskScore)
	assert.Equal(t, RiskLow, p.RiskCategory)
	assert.Equal(t, now, p.LastAnalyzedAt)
}

func TestAnalyzePaymentTiming(t *testing.T) {
	h := History{PaidInvoices: []PaidInvoice{
		{InvoiceID: 1, DueDate: day(1), PaidAt: day(1).Add(-time.Hour)},
		{InvoiceID: 2, DueDate: day(1), PaidAt: day(5)},
		{InvoiceID: 3, DueDate: day(1), PaidAt: day(3)},
		{InvoiceID: 4, DueDate: day(10), PaidAt: day(10)},
	}}
	p := Analyze(h, day(20), testRules)

	assert.Equal(t, 2, p.OnTimePayments)
	assert.Equal(t, 2, p.LatePayments)
	assert.Equal(t, 50.0, p.OnTimeRate)
	assert.Equal(t, 1.5, p.AvgPaymentDays)
	// late ratio 0.5, no sends
	assert.Equal(t, 0.3, p.ChurnRiskScore)
	assert.Equal(t, RiskLow, p.RiskCategory)
}

func TestAnalyzeContactPreferences(t *testing.T) {
	mon9 := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)  // Monday
	thu15 := time.Date(2026, 1, 8, 15, 0, 0, 0, time.UTC) // Thursday
	h := History{Events: []ContactEvent{
		{Channel: channel.Email, SentAt: day(1)},
		{Channel: channel.Email, SentAt: day(2), Responded: true, RespondedAt: &mon9},
		{Channel: channel.WhatsApp, SentAt: day(3), Responded: true, RespondedAt: &thu15},
		{Channel: channel.WhatsApp, SentAt: day(4), Responded: true, RespondedAt: ptr(thu15.AddDate(0, 0, 7))},
		{Channel: channel.WhatsApp, SentAt: day(5), Failed: true},
	}}
	p := Analyze(h, day(20), testRules)

	assert.Equal(t, 75.0, p.ResponseRate)
	assert.Equal(t, channel.WhatsApp, p.PreferredChannel)
	assert.Equal(t, 15, p.OptimalContactHour)
	assert.Equal(t, int(time.Thursday), p.OptimalContactDay)
}

func TestAnalyzeModeTieBreaksToSmallest(t *testing.T) {
	a := time.Date(2026, 1, 7, 16, 0, 0, 0, time.UTC) // Wednesday
	b := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)  // Monday
	h := History{Events: []ContactEvent{
		{Channel: channel.Email, Responded: true, RespondedAt: &a},
		{Channel: channel.Email, Responded: true, RespondedAt: &b},
	}}
	p := Analyze(h, day(20), testRules)
	assert.Equal(t, 8, p.OptimalContactHour)
	assert.Equal(t, int(time.Monday), p.OptimalContactDay)
}

func TestAnalyzePreferredChannelTieFallsBackToEmail(t *testing.T) {
	h := History{Events: []ContactEvent{
		{Channel: channel.WhatsApp, Responded: true, RespondedAt: ptr(day(2))},
		{Channel: channel.Email, Responded: true, RespondedAt: ptr(day(3))},
	}}
	assert.Equal(t, channel.Email, Analyze(h, day(20), testRules).PreferredChannel)
}

func TestAnalyzeDiscountResponsiveness(t *testing.T) {
	const inv1, inv2 = snowflake.ID(1), snowflake.ID(2)
	paid := []PaidInvoice{
		{InvoiceID: inv1, DueDate: day(1), PaidAt: day(12)},
		{InvoiceID: inv2, DueDate: day(1), PaidAt: day(28)},
	}
	events := []ContactEvent{
		{InvoiceID: inv1, Channel: channel.Email, SentAt: day(8), DiscountPercent: ptr(6.0)},
		// paid 20 days after the offer: outside the window
		{InvoiceID: inv2, Channel: channel.Email, SentAt: day(8), DiscountPercent: ptr(4.0)},
	}

	t.Run("responsive", func(t *testing.T) {
		p := Analyze(History{PaidInvoices: paid, Events: events}, day(30), testRules)
		assert.True(t, p.DiscountResponsive)
		assert.Equal(t, 6.0, p.EffectiveDiscountRate)
		assert.True(t, p.QualifiesForDiscount(2))
	})

	t.Run("single_paid_invoice", func(t *testing.T) {
		p := Analyze(History{PaidInvoices: paid[:1], Events: events[:1]}, day(30), testRules)
		assert.True(t, p.DiscountResponsive)
		assert.Equal(t, 6.0, p.EffectiveDiscountRate)
		assert.True(t, p.QualifiesForDiscount(1))
		assert.False(t, p.QualifiesForDiscount(2), "one paid invoice is too little history for an offer")
	})

	t.Run("offer_after_payment_ignored", func(t *testing.T) {
		late := []ContactEvent{{InvoiceID: inv1, Channel: channel.Email, SentAt: day(13), DiscountPercent: ptr(6.0)}}
		p := Analyze(History{PaidInvoices: paid, Events: late}, day(30), testRules)
		assert.False(t, p.DiscountResponsive)
	})
}

func TestChurnRiskMonotonic(t *testing.T) {
	steps := []float64{0, 0.25, 0.5, 0.75, 1}
	for _, unresponsive := range steps {
		prev := -1.0
		for _, late := range steps {
			score := ChurnRisk(late, unresponsive, 0.6, 0.4)
			assert.GreaterOrEqual(t, score, prev)
			assert.True(t, score >= 0 && score <= 1)
			prev = score
		}
	}
	for _, late := range steps {
		prev := -1.0
		for _, unresponsive := range steps {
			score := ChurnRisk(late, unresponsive, 0.6, 0.4)
			assert.GreaterOrEqual(t, score, prev)
			prev = score
		}
	}
	assert.Equal(t, 1.0, ChurnRisk(2, 2, 0.6, 0.4))
}

func TestRiskCategoryFor(t *testing.T) {
	assert.Equal(t, RiskLow, RiskCategoryFor(0.39))
	assert.Equal(t, RiskMedium, RiskCategoryFor(0.4))
	assert.Equal(t, RiskMedium, RiskCategoryFor(0.69))
	assert.Equal(t, RiskHigh, RiskCategoryFor(0.7))
	assert.Equal(t, RiskHigh, RiskCategoryFor(1))
}

func TestRecommendedDiscountNeverExceedsCap(t *testing.T) {
	for _, rate := range []float64{0.4, 3, 9.6, 10, 15, 55, 100} {
		p := Profile{DiscountResponsive: true, EffectiveDiscountRate: rate}
		assert.LessOrEqual(t, p.RecommendedDiscount(), MaxDiscountPercent, "rate %v", rate)
	}
	assert.Equal(t, 10.0, Profile{DiscountResponsive: true, EffectiveDiscountRate: 45}.RecommendedDiscount())
	assert.Equal(t, 0.0, Profile{DiscountResponsive: false, EffectiveDiscountRate: 45}.RecommendedDiscount())
}
