package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	"github.com/smallbiznis/invoicerecovery/internal/automation/policy"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	"github.com/smallbiznis/invoicerecovery/internal/invoice/format"
	"github.com/smallbiznis/invoicerecovery/internal/lock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type outcome int

const (
	outcomeNone outcome = iota
	outcomeEscalated
	outcomeExhausted
	outcomeStopped
	outcomeSuperseded
)

const dueDateLayout = "2 Jan 2006"

// claimedSend is a due run leased to this dispatcher.
type claimedSend struct {
	automation automationdomain.AutomatedReminder
	action     policy.Send
	invoice    invoicedomain.Invoice
	client     clientdomain.Client
}

// dispatch runs the decide-and-claim, send and record phases for one automation.
// The lock is never held while talking to a channel.
func (s *Scheduler) dispatch(ctx context.Context, item automationdomain.AutomatedReminder, now time.Time) (outcome, error) {
	key := lock.AutomationKey(int64(item.OrgID), int64(item.ID))
	opts := lock.Options{MaxWait: s.cfg.LockWait}

	var (
		claim *claimedSend
		out   outcome
	)
	err := lock.WithLock(ctx, s.locker, key, opts, func(ctx context.Context) error {
		var err error
		claim, out, err = s.decide(ctx, item, now)
		return err
	})
	if err != nil || claim == nil {
		return out, err
	}

	msg, rendered, err := s.buildMessage(*claim, now)
	var delivery channel.Delivery
	if err == nil {
		delivery, err = s.sender.Send(ctx, msg)
	}

	var recordErr error
	if err != nil {
		s.metrics.IncReminderFailed(string(msg.Channel))
		recordErr = lock.WithLock(ctx, s.locker, key, opts, func(ctx context.Context) error {
			return s.recordFailure(ctx, *claim, msg, rendered, err, now)
		})
		return outcomeNone, errors.Join(fmt.Errorf("send reminder: %w", err), recordErr)
	}

	s.metrics.IncReminderSent(string(claim.action.Stage), string(msg.Channel))
	recordErr = lock.WithLock(ctx, s.locker, key, opts, func(ctx context.Context) error {
		var err error
		out, err = s.recordSuccess(ctx, *claim, msg, rendered, delivery, now)
		return err
	})
	return out, recordErr
}

func (s *Scheduler) decide(ctx context.Context, item automationdomain.AutomatedReminder, now time.Time) (*claimedSend, outcome, error) {
	a, err := s.automationRepo.FindByID(ctx, s.db, item.OrgID, item.ID)
	if err != nil {
		return nil, outcomeNone, err
	}
	if a == nil || !a.IsDue(now) {
		return nil, outcomeNone, nil
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, a.OrgID, a.InvoiceID)
	if err != nil {
		return nil, outcomeNone, err
	}
	if invoice == nil {
		return nil, outcomeNone, automationdomain.ErrInvoiceNotFound
	}
	if !invoice.IsPayable() {
		out, err := s.stopUnpayable(ctx, a, *invoice, now)
		return nil, out, err
	}

	client, err := s.clientRepo.FindByID(ctx, s.db, a.OrgID, a.ClientID)
	if err != nil {
		return nil, outcomeNone, err
	}
	if client == nil {
		return nil, outcomeNone, automationdomain.ErrClientNotFound
	}

	profile, err := s.behavior.GetProfile(ctx, a.OrgID, a.ClientID)
	var current *behaviordomain.Profile
	switch {
	case err == nil:
		current = &profile
	case !errors.Is(err, behaviordomain.ErrProfileNotFound):
		return nil, outcomeNone, err
	}
	if current != nil && a.UsedPersonalizedStrategy {
		a.SetSendTime(current.OptimalContactHour, current.OptimalContactDay)
	}

	cfg := policy.ConfigFrom(s.recovery.Get())
	switch action := policy.NextAction(*a, current, invoice.DueDate, now, cfg).(type) {
	case policy.Noop, policy.Wait:
		return nil, outcomeNone, nil
	case policy.Stop:
		from := a.CurrentStage
		a.Stop(action.Reason, now)
		ok, err := s.automationRepo.UpdateIfVersion(ctx, s.db, a)
		if err != nil {
			return nil, outcomeNone, err
		}
		if !ok {
			s.metrics.IncConflict("stop")
			return nil, outcomeSuperseded, nil
		}
		s.metrics.IncTransition(string(from), string(automationdomain.StatusCompleted))
		return nil, outcomeStopped, nil
	case policy.Send:
		if err := a.Claim(now.Add(s.recovery.Get().DispatchLease), now); err != nil {
			return nil, outcomeNone, err
		}
		ok, err := s.automationRepo.UpdateIfVersion(ctx, s.db, a)
		if err != nil {
			return nil, outcomeNone, err
		}
		if !ok {
			s.metrics.IncConflict("claim")
			return nil, outcomeSuperseded, nil
		}
		return &claimedSend{automation: *a, action: action, invoice: *invoice, client: *client}, outcomeNone, nil
	default:
		return nil, outcomeNone, fmt.Errorf("unknown policy action %T", action)
	}
}

// stopUnpayable completes an automation whose invoice was settled or voided outside the
// payment flow. No receipt is sent here; the flow that recorded the payment owns that.
func (s *Scheduler) stopUnpayable(ctx context.Context, a *automationdomain.AutomatedReminder, invoice invoicedomain.Invoice, now time.Time) (outcome, error) {
	from := a.CurrentStage
	if invoice.Status == invoicedomain.StatusPaid {
		a.MarkPaymentReceived(now)
	} else {
		a.Stop(automationdomain.StopReasonManual, now)
	}
	ok, err := s.automationRepo.UpdateStopped(ctx, s.db, a)
	if err != nil {
		return outcomeNone, err
	}
	if !ok {
		return outcomeSuperseded, nil
	}
	s.metrics.IncTransition(string(from), string(automationdomain.StatusCompleted))
	s.logger(ctx).Info("automation.stopped",
		zap.String("org_id", a.OrgID.String()),
		zap.String("automation_id", a.ID.String()),
		zap.String("reason", string(*a.StopReason)),
		zap.String("invoice_status", string(invoice.Status)),
	)
	return outcomeStopped, nil
}

func (s *Scheduler) buildMessage(c claimedSend, now time.Time) (channel.Message, channel.Rendered, error) {
	a := c.automation
	vars := map[string]string{
		"client_name":    c.client.Name,
		"invoice_number": c.invoice.Number,
		"amount":         format.Amount(c.invoice.AmountCents, c.invoice.Currency),
		"due_date":       c.invoice.DueDate.Format(dueDateLayout),
		"days_overdue":   strconv.Itoa(c.invoice.DaysOverdue(now)),
		"sender_name":    s.senderName,
	}
	if c.action.Discount != nil {
		vars["discount_percent"] = strconv.FormatFloat(*c.action.Discount, 'f', -1, 64)
	}

	recipient := c.client.Email
	if a.Channel == channel.WhatsApp {
		recipient = c.client.Phone
	}
	msg := channel.Message{
		Channel:   a.Channel,
		Recipient: recipient,
		Template:  channel.ReminderTemplate(string(c.action.Stage)),
		Variables: vars,
	}
	rendered, err := channel.Render(msg.Template, vars)
	return msg, rendered, err
}

func (s *Scheduler) newEvent(c claimedSend, msg channel.Message, rendered channel.Rendered, now time.Time) automationdomain.ReminderEvent {
	a := c.automation
	return automationdomain.ReminderEvent{
		ID:              s.genID.Generate(),
		OrgID:           a.OrgID,
		AutomationID:    a.ID,
		InvoiceID:       a.InvoiceID,
		ClientID:        a.ClientID,
		Stage:           c.action.Stage,
		Channel:         msg.Channel,
		Recipient:       msg.Recipient,
		Subject:         rendered.Subject,
		Content:         rendered.Body,
		DiscountPercent: c.action.Discount,
		SentAt:          now,
		Metadata: map[string]any{
			"template":     string(msg.Template),
			"personalized": a.UsedPersonalizedStrategy,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// recordSuccess appends the sent event and applies the send through a version check on the
// claimed row. Losing the check means a payment or manual stop won; the escalation is dropped.
func (s *Scheduler) recordSuccess(
	ctx context.Context,
	c claimedSend,
	msg channel.Message,
	rendered channel.Rendered,
	delivery channel.Delivery,
	now time.Time,
) (outcome, error) {
	event := s.newEvent(c, msg, rendered, now)
	event.Status = automationdomain.EventStatusSent
	if delivery.DeliveryID != "" {
		id := delivery.DeliveryID
		event.DeliveryID = &id
	}

	a := c.automation
	from := a.CurrentStage
	if err := a.RecordSend(c.action.Stage, c.action.Discount, now, c.action.NextRunAt); err != nil {
		return outcomeNone, err
	}

	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.automationRepo.InsertEvent(ctx, tx, &event); err != nil {
			return err
		}
		var err error
		applied, err = s.automationRepo.UpdateIfVersion(ctx, tx, &a)
		return err
	})
	if err != nil {
		return outcomeNone, err
	}

	log := s.logger(ctx).With(
		zap.String("org_id", a.OrgID.String()),
		zap.String("automation_id", a.ID.String()),
		zap.String("stage", string(c.action.Stage)),
		zap.String("channel", string(msg.Channel)),
	)
	if !applied {
		s.metrics.IncConflict("record")
		log.Info("automation.escalation.superseded")
		return outcomeSuperseded, nil
	}

	if a.IsActive() {
		s.metrics.IncTransition(string(from), string(a.CurrentStage))
		log.Info("automation.escalated",
			zap.String("next_stage", string(a.CurrentStage)),
			zap.Time("next_scheduled_at", *a.NextScheduledAt),
		)
		return outcomeEscalated, nil
	}
	s.metrics.IncTransition(string(from), string(automationdomain.StatusCompleted))
	log.Info("automation.stopped", zap.String("reason", string(automationdomain.StopReasonStageExhausted)))
	return outcomeExhausted, nil
}

// recordFailure appends a failed event and releases the claim. Stage and schedule are left
// untouched so the run is due again on the next sweep.
func (s *Scheduler) recordFailure(
	ctx context.Context,
	c claimedSend,
	msg channel.Message,
	rendered channel.Rendered,
	sendErr error,
	now time.Time,
) error {
	event := s.newEvent(c, msg, rendered, now)
	event.Status = automationdomain.EventStatusFailed
	reason := sendErr.Error()
	event.ErrorMessage = &reason

	a := c.automation
	a.ReleaseClaim(now)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.automationRepo.InsertEvent(ctx, tx, &event); err != nil {
			return err
		}
		if _, err := s.automationRepo.UpdateIfVersion(ctx, tx, &a); err != nil {
			return err
		}
		return nil
	})
}
