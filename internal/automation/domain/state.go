package domain

import "time"

func (a *AutomatedReminder) IsActive() bool {
	return a.Status == StatusActive
}

// CanEscalate reports whether the automation may advance to a later stage.
func (a *AutomatedReminder) CanEscalate() bool {
	_, ok := a.CurrentStage.Next()
	return a.IsActive() && ok
}

// Escalate advances exactly one stage.
func (a *AutomatedReminder) Escalate(now time.Time) error {
	if !a.CanEscalate() {
		return ErrCannotEscalate
	}
	next, _ := a.CurrentStage.Next()
	a.CurrentStage = next
	a.ReminderCount++
	a.UpdatedAt = now
	return nil
}

// Stop completes an active automation. It reports false, changing nothing,
// when the automation is already completed.
func (a *AutomatedReminder) Stop(reason StopReason, now time.Time) bool {
	if !a.IsActive() {
		return false
	}
	a.Status = StatusCompleted
	a.StoppedAt = &now
	a.StopReason = &reason
	a.NextScheduledAt = nil
	a.ClaimedUntil = nil
	a.UpdatedAt = now
	return true
}

// MarkPaymentReceived completes the automation because the invoice was paid.
func (a *AutomatedReminder) MarkPaymentReceived(now time.Time) bool {
	if !a.IsActive() {
		return false
	}
	a.PaymentReceived = true
	a.PaymentReceivedAt = &now
	return a.Stop(StopReasonPaymentReceived, now)
}

// RecordSend applies a successful send at stage. Non-final sends escalate and
// schedule next; the final send stops the automation as stage_exhausted.
func (a *AutomatedReminder) RecordSend(stage Stage, discount *float64, now time.Time, next *time.Time) error {
	if !a.IsActive() {
		return ErrNotActive
	}
	if stage != a.CurrentStage {
		return ErrStageMismatch
	}
	if stage != StageFinal && next == nil {
		return ErrMissingNextRun
	}

	a.TotalRemindersSent++
	a.LastSentStage = &stage
	if discount != nil {
		offered := *discount
		a.DiscountOffered = &offered
	}
	a.ClaimedUntil = nil
	a.UpdatedAt = now

	if stage == StageFinal {
		a.Stop(StopReasonStageExhausted, now)
		return nil
	}
	if err := a.Escalate(now); err != nil {
		return err
	}
	at := next.UTC()
	a.NextScheduledAt = &at
	return nil
}

// Reschedule moves the next run of an active automation. A run leased to a
// dispatcher cannot be moved until the lease is released or expires.
func (a *AutomatedReminder) Reschedule(at, now time.Time) error {
	if !a.IsActive() {
		return ErrNotActive
	}
	if a.IsClaimed(now) {
		return ErrAlreadyClaimed
	}
	at = at.UTC()
	a.NextScheduledAt = &at
	a.ClaimedUntil = nil
	a.UpdatedAt = now
	return nil
}

// Claim leases the current due run to one dispatcher until the given time.
func (a *AutomatedReminder) Claim(until, now time.Time) error {
	if !a.IsActive() {
		return ErrNotActive
	}
	if a.IsClaimed(now) {
		return ErrAlreadyClaimed
	}
	a.ClaimedUntil = &until
	a.UpdatedAt = now
	return nil
}

func (a *AutomatedReminder) IsClaimed(now time.Time) bool {
	return a.ClaimedUntil != nil && !a.ClaimedUntil.Before(now)
}

func (a *AutomatedReminder) ReleaseClaim(now time.Time) {
	a.ClaimedUntil = nil
	a.UpdatedAt = now
}

// IsDue reports whether an active automation should be dispatched at now.
func (a *AutomatedReminder) IsDue(now time.Time) bool {
	return a.IsActive() && a.NextScheduledAt != nil && !a.NextScheduledAt.After(now) && !a.IsClaimed(now)
}

// SetSendTime caches the optimal weekday and hour used to align future runs.
func (a *AutomatedReminder) SetSendTime(hour, day int) {
	a.ScheduledHour = &hour
	a.ScheduledDay = &day
}

// SendTime returns the cached optimal hour and weekday.
func (a *AutomatedReminder) SendTime() (hour, day int, ok bool) {
	if a.ScheduledHour == nil || a.ScheduledDay == nil {
		return 0, 0, false
	}
	return *a.ScheduledHour, *a.ScheduledDay, true
}
