package domain

import (
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
)

// PaidInvoice is the payment timing of one settled invoice.
type PaidInvoice struct {
	InvoiceID snowflake.ID
	DueDate   time.Time
	PaidAt    time.Time
}

// ContactEvent is one reminder sent to the client and its outcome.
type ContactEvent struct {
	InvoiceID       snowflake.ID
	Channel         channel.Channel
	Failed          bool
	SentAt          time.Time
	Responded       bool
	RespondedAt     *time.Time
	DiscountPercent *float64
}

type History struct {
	PaidInvoices []PaidInvoice
	Events       []ContactEvent
}

// Rules holds the tunables of the derivation.
type Rules struct {
	FallbackContactHour     int
	FallbackContactDay      int
	DiscountResponseWindow  time.Duration
	ChurnLateWeight         float64
	ChurnUnresponsiveWeight float64
}

// Analyze derives a full profile from history. Identity and timestamps other than
// LastAnalyzedAt are left for the caller. It never fails: empty history yields defaults.
func Analyze(h History, now time.Time, rules Rules) Profile {
	p := Profile{
		PreferredChannel:   channel.Email,
		OptimalContactHour: rules.FallbackContactHour,
		OptimalContactDay:  rules.FallbackContactDay,
		LastAnalyzedAt:     now,
	}

	applyPaymentTiming(&p, h.PaidInvoices)

	sent := 0
	responded := 0
	for _, e := range h.Events {
		if e.Failed {
			continue
		}
		sent++
		if e.Responded {
			responded++
		}
	}
	if sent > 0 {
		p.ResponseRate = roundPercent(float64(responded) / float64(sent) * 100)
	}

	if hour, day, ok := optimalContactTime(h.Events); ok {
		p.OptimalContactHour = hour
		p.OptimalContactDay = day
	}
	p.PreferredChannel = preferredChannel(h.Events)

	rates := discountRatesBeforeTimelyPayment(h, rules.DiscountResponseWindow)
	if len(rates) > 0 {
		p.DiscountResponsive = true
		p.EffectiveDiscountRate = roundPercent(mean(rates))
	}

	lateRatio := 0.0
	if paid := p.PaidInvoices(); paid > 0 {
		lateRatio = float64(p.LatePayments) / float64(paid)
	}
	unresponsiveRatio := 0.0
	if sent > 0 {
		unresponsiveRatio = float64(sent-responded) / float64(sent)
	}
	p.ChurnRiskScore = ChurnRisk(lateRatio, unresponsiveRatio, rules.ChurnLateWeight, rules.ChurnUnresponsiveWeight)
	p.RiskCategory = RiskCategoryFor(p.ChurnRiskScore)

	return p
}

// ChurnRisk combines the late-payment and unresponsiveness ratios. Non-negative
// weights keep the score monotonic in both inputs.
func ChurnRisk(lateRatio, unresponsiveRatio, lateWeight, unresponsiveWeight float64) float64 {
	score := math.Max(lateWeight, 0)*clamp01(lateRatio) + math.Max(unresponsiveWeight, 0)*clamp01(unresponsiveRatio)
	return math.Round(clamp01(score)*1000) / 1000
}

func applyPaymentTiming(p *Profile, paid []PaidInvoice) {
	if len(paid) == 0 {
		return
	}
	delays := make([]float64, 0, len(paid))
	for _, inv := range paid {
		delay := inv.PaidAt.Sub(inv.DueDate).Hours() / 24
		if delay <= 0 {
			p.OnTimePayments++
			delay = 0
		} else {
			p.LatePayments++
		}
		delays = append(delays, delay)
	}
	p.AvgPaymentDays = math.Round(mean(delays)*100) / 100
	p.OnTimeRate = roundPercent(float64(p.OnTimePayments) / float64(len(paid)) * 100)
}

func optimalContactTime(events []ContactEvent) (int, int, bool) {
	hours := map[int]int{}
	days := map[int]int{}
	for _, e := range events {
		if !e.Responded || e.RespondedAt == nil {
			continue
		}
		at := e.RespondedAt.UTC()
		hours[at.Hour()]++
		days[int(at.Weekday())]++
	}
	if len(hours) == 0 {
		return 0, 0, false
	}
	return mode(hours), mode(days), true
}

// mode returns the most frequent key, preferring the smallest on ties.
func mode(counts map[int]int) int {
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

func preferredChannel(events []ContactEvent) channel.Channel {
	type tally struct{ sent, responded int }
	byChannel := map[channel.Channel]*tally{}
	for _, e := range events {
		if e.Failed || !e.Channel.Valid() {
			continue
		}
		t, ok := byChannel[e.Channel]
		if !ok {
			t = &tally{}
			byChannel[e.Channel] = t
		}
		t.sent++
		if e.Responded {
			t.responded++
		}
	}

	best := channel.Email
	bestRate := -1.0
	for _, ch := range []channel.Channel{channel.Email, channel.WhatsApp} {
		t, ok := byChannel[ch]
		if !ok {
			continue
		}
		rate := float64(t.responded) / float64(t.sent)
		if rate > bestRate {
			best, bestRate = ch, rate
		}
	}
	return best
}

// discountRatesBeforeTimelyPayment collects, per paid invoice, the latest discount offered
// before payment when the payment followed that offer within window.
func discountRatesBeforeTimelyPayment(h History, window time.Duration) []float64 {
	type offer struct {
		at      time.Time
		percent float64
	}
	latest := map[snowflake.ID]offer{}
	paidAt := map[snowflake.ID]time.Time{}
	for _, inv := range h.PaidInvoices {
		paidAt[inv.InvoiceID] = inv.PaidAt
	}

	for _, e := range h.Events {
		if e.Failed || e.DiscountPercent == nil || *e.DiscountPercent <= 0 {
			continue
		}
		paid, ok := paidAt[e.InvoiceID]
		if !ok || e.SentAt.After(paid) {
			continue
		}
		if cur, seen := latest[e.InvoiceID]; !seen || e.SentAt.After(cur.at) {
			latest[e.InvoiceID] = offer{at: e.SentAt, percent: *e.DiscountPercent}
		}
	}

	ids := make([]snowflake.ID, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rates := make([]float64, 0, len(ids))
	for _, id := range ids {
		o := latest[id]
		if paidAt[id].Sub(o.at) <= window {
			rates = append(rates, o.percent)
		}
	}
	return rates
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}
