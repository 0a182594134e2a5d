// Package policy decides what a due automation should do next.
package policy

import (
	"time"

	"github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/config"
)

const day = 24 * time.Hour

// Action is one of Send, Wait, Stop or Noop.
type Action interface {
	isAction()
}

// Send dispatches a reminder at Stage. NextRunAt is nil for the final stage.
type Send struct {
	Stage     domain.Stage
	NextRunAt *time.Time
	Discount  *float64
}

// Wait means the automation is not due before Until.
type Wait struct {
	Until time.Time
}

type Stop struct {
	Reason domain.StopReason
}

type Noop struct{}

func (Send) isAction() {}
func (Wait) isAction() {}
func (Stop) isAction() {}
func (Noop) isAction() {}

type Config struct {
	StandardAfter           time.Duration
	UrgentAfter             time.Duration
	FinalAfter              time.Duration
	MinInterval             time.Duration
	DiscountCap             float64
	DiscountMinPaidInvoices int
}

func ConfigFrom(cfg config.RecoveryConfig) Config {
	return Config{
		StandardAfter:           time.Duration(cfg.StandardAfterDays) * day,
		UrgentAfter:             time.Duration(cfg.UrgentAfterDays) * day,
		FinalAfter:              time.Duration(cfg.FinalAfterDays) * day,
		MinInterval:             cfg.MinInterval,
		DiscountCap:             cfg.DiscountCap,
		DiscountMinPaidInvoices: cfg.DiscountMinPaidInvoices,
	}
}

// StageOffset is the time after the due date at which stage becomes appropriate.
func StageOffset(stage domain.Stage, cfg Config) time.Duration {
	switch stage {
	case domain.StageStandard:
		return cfg.StandardAfter
	case domain.StageUrgent:
		return cfg.UrgentAfter
	case domain.StageFinal:
		return cfg.FinalAfter
	default:
		return 0
	}
}

// NextAction evaluates an automation at now. profile may be nil.
// The next run is anchored to the due date but never earlier than now plus MinInterval.
func NextAction(a domain.AutomatedReminder, profile *behaviordomain.Profile, dueDate, now time.Time, cfg Config) Action {
	if !a.IsActive() {
		return Noop{}
	}
	if a.NextScheduledAt != nil && now.Before(*a.NextScheduledAt) {
		return Wait{Until: *a.NextScheduledAt}
	}
	if a.CurrentStage == domain.StageFinal && a.LastSentStage != nil && *a.LastSentStage == domain.StageFinal {
		return Stop{Reason: domain.StopReasonStageExhausted}
	}

	send := Send{Stage: a.CurrentStage}
	if next, ok := a.CurrentStage.Next(); ok {
		at := dueDate.UTC().Add(StageOffset(next, cfg))
		if floor := now.Add(cfg.MinInterval); at.Before(floor) {
			at = floor
		}
		if hour, weekday, ok := a.SendTime(); ok {
			at = NextOccurrence(at, hour, time.Weekday(weekday))
		}
		send.NextRunAt = &at
	}

	if profile != nil && profile.QualifiesForDiscount(cfg.DiscountMinPaidInvoices) {
		if discount := min(profile.RecommendedDiscount(), cfg.DiscountCap); discount > 0 {
			send.Discount = &discount
		}
	}
	return send
}

// NextOccurrence returns the first instant at or after t that falls on weekday at hour:00 UTC.
func NextOccurrence(t time.Time, hour int, weekday time.Weekday) time.Time {
	t = t.UTC()
	candidate := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
	shift := (int(weekday) - int(t.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, shift)
	if candidate.Before(t) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// RecommendedStage picks the starting stage for an invoice already overdue.
// High-risk clients start one stage later, but never directly at final.
func RecommendedStage(daysOverdue int, risk behaviordomain.RiskCategory, cfg Config) domain.Stage {
	overdue := time.Duration(max(daysOverdue, 0)) * day
	stage := domain.StageGentle
	for _, candidate := range domain.Stages[1:] {
		if StageOffset(candidate, cfg) <= overdue {
			stage = candidate
		}
	}
	if risk == behaviordomain.RiskHigh && stage.Index() < domain.StageUrgent.Index() {
		stage, _ = stage.Next()
	}
	return stage
}
