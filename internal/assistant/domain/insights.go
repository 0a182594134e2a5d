package domain

import (
	"fmt"
	"time"

	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
)

const (
	slowPayerDays      = 14.0
	reliableOnTimeRate = 80.0
	lowResponseRate    = 25.0
)

// InsightsFor derives observations from a behavior profile. A nil profile yields a
// single no-history insight.
func InsightsFor(p *behaviordomain.Profile) []Insight {
	if p == nil || p.PaidInvoices() == 0 {
		return []Insight{{
			Code:     "no_history",
			Severity: SeverityInfo,
			Message:  "No payment history yet; reminders use the default schedule.",
		}}
	}

	var insights []Insight
	if p.RiskCategory == behaviordomain.RiskHigh {
		insights = append(insights, Insight{
			Code:     "high_churn_risk",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Churn risk is %.0f%%; consider starting at a firmer stage.", p.ChurnRiskScore*100),
		})
	}
	if p.AvgPaymentDays > slowPayerDays {
		insights = append(insights, Insight{
			Code:     "slow_payer",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Pays %.0f days after the due date on average.", p.AvgPaymentDays),
		})
	} else if p.OnTimeRate >= reliableOnTimeRate {
		insights = append(insights, Insight{
			Code:     "reliable_payer",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%.0f%% of invoices were paid on time.", p.OnTimeRate),
		})
	}
	if p.DiscountResponsive && p.RecommendedDiscount() > 0 {
		insights = append(insights, Insight{
			Code:     "discount_responsive",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Pays faster when offered a discount; %.0f%% is recommended.", p.RecommendedDiscount()),
		})
	}
	if p.ResponseRate < lowResponseRate {
		insights = append(insights, Insight{
			Code:     "low_response",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Replies to %.0f%% of reminders; %s is the most reliable channel.", p.ResponseRate, p.PreferredChannel),
		})
	}
	insights = append(insights, Insight{
		Code:     "best_contact_time",
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Most responsive on %s around %02d:00 UTC.", time.Weekday(p.OptimalContactDay), p.OptimalContactHour),
	})
	return insights
}
