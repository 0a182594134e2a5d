package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"github.com/smallbiznis/invoicerecovery/internal/testsupport"
	"github.com/smallbiznis/invoicerecovery/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 7, 6, 10, 0, 0, 0, time.UTC)

func newAutomation(node *snowflake.Node, orgID, invoiceID snowflake.ID, next time.Time) *domain.AutomatedReminder {
	return &domain.AutomatedReminder{
		ID:              node.Generate(),
		OrgID:           orgID,
		InvoiceID:       invoiceID,
		ClientID:        node.Generate(),
		CurrentStage:    domain.StageGentle,
		Status:          domain.StatusActive,
		Channel:         channel.Email,
		NextScheduledAt: &next,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestInsertRejectsSecondActiveAutomation(t *testing.T) {
	gdb := testsupport.OpenDB(t)
	node := testsupport.Node(t)
	repo := Provide()
	ctx := context.Background()
	orgID, invoiceID := node.Generate(), node.Generate()

	first := newAutomation(node, orgID, invoiceID, now)
	require.NoError(t, repo.Insert(ctx, gdb, first))

	err := repo.Insert(ctx, gdb, newAutomation(node, orgID, invoiceID, now))
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))

	// a completed automation no longer blocks a new one
	first.Stop(domain.StopReasonManual, now)
	ok, err := repo.UpdateStopped(ctx, gdb, first)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.Insert(ctx, gdb, newAutomation(node, orgID, invoiceID, now)))
}

func TestFindActiveByInvoiceRoundTrip(t *testing.T) {
	gdb := testsupport.OpenDB(t)
	node := testsupport.Node(t)
	repo := Provide()
	ctx := context.Background()

	a := newAutomation(node, node.Generate(), node.Generate(), now)
	a.SetSendTime(14, int(time.Thursday))
	a.UsedPersonalizedStrategy = true
	require.NoError(t, repo.Insert(ctx, gdb, a))

	got, err := repo.FindActiveByInvoice(ctx, gdb, a.OrgID, a.InvoiceID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, domain.StageGentle, got.CurrentStage)
	assert.Equal(t, channel.Email, got.Channel)
	hour, day, ok := got.SendTime()
	assert.True(t, ok)
	assert.Equal(t, 14, hour)
	assert.Equal(t, int(time.Thursday), day)
	assert.True(t, got.UsedPersonalizedStrategy)
	assert.Nil(t, got.LastSentStage)
	assert.True(t, got.NextScheduledAt.Equal(now))

	missing, err := repo.FindActiveByInvoice(ctx, gdb, node.Generate(), a.InvoiceID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListDueFiltersAndPages(t *testing.T) {
	gdb := testsupport.OpenDB(t)
	node := testsupport.Node(t)
	repo := Provide()
	ctx := context.Background()
	orgID := node.Generate()

	early := newAutomation(node, orgID, node.Generate(), now.Add(-2*time.Hour))
	late := newAutomation(node, orgID, node.Generate(), now.Add(-time.Hour))
	future := newAutomation(node, orgID, node.Generate(), now.Add(time.Hour))
	claimed := newAutomation(node, orgID, node.Generate(), now.Add(-3*time.Hour))
	lease := now.Add(time.Minute)
	claimed.ClaimedUntil = &lease
	expired := newAutomation(node, orgID, node.Generate(), now.Add(-30*time.Minute))
	stale := now.Add(-time.Minute)
	expired.ClaimedUntil = &stale
	for _, a := range []*domain.AutomatedReminder{early, late, future, claimed, expired} {
		require.NoError(t, repo.Insert(ctx, gdb, a))
	}

	page, err := repo.ListDue(ctx, gdb, now, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, early.ID, page[0].ID)
	assert.Equal(t, late.ID, page[1].ID)

	last := page[1]
	rest, err := repo.ListDue(ctx, gdb, now, &domain.DueCursor{At: *last.NextScheduledAt, ID: last.ID}, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, expired.ID, rest[0].ID)
}

func TestUpdateIfVersionDetectsConflicts(t *testing.T) {
	gdb := testsupport.OpenDB(t)
	node := testsupport.Node(t)
	repo := Provide()
	ctx := context.Background()

	a := newAutomation(node, node.Generate(), node.Generate(), now)
	require.NoError(t, repo.Insert(ctx, gdb, a))

	stale := *a
	require.NoError(t, a.Claim(now.Add(5*time.Minute), now))
	ok, err := repo.UpdateIfVersion(ctx, gdb, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), a.Version)

	require.NoError(t, stale.Claim(now.Add(5*time.Minute), now))
	ok, err = repo.UpdateIfVersion(ctx, gdb, &stale)
	require.NoError(t, err)
	assert.False(t, ok)

	// a payment stop wins regardless of version and invalidates the claim holder
	paid := *a
	require.True(t, paid.MarkPaymentReceived(now))
	ok, err = repo.UpdateStopped(ctx, gdb, &paid)
	require.NoError(t, err)
	require.True(t, ok)

	next := now.Add(24 * time.Hour)
	require.NoError(t, a.RecordSend(domain.StageGentle, nil, now, &next))
	ok, err = repo.UpdateIfVersion(ctx, gdb, a)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, gdb, a.OrgID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, domain.StageGentle, got.CurrentStage)
	assert.True(t, got.PaymentReceived)
	assert.Nil(t, got.NextScheduledAt)
	assert.Equal(t, int64(3), got.Version)
}

func TestEventResponseAndDeliveryUpdates(t *testing.T) {
	gdb := testsupport.OpenDB(t)
	node := testsupport.Node(t)
	repo := Provide()
	ctx := context.Background()
	orgID, clientID := node.Generate(), node.Generate()

	deliveryID := "msg-1"
	sent := &domain.ReminderEvent{
		ID: node.Generate(), OrgID: orgID, AutomationID: node.Generate(), InvoiceID: node.Generate(), ClientID: clientID,
		Stage: domain.StageGentle, Channel: channel.Email, Status: domain.EventStatusSent, Recipient: "ap@example.com",
		DeliveryID: &deliveryID, SentAt: now, CreatedAt: now, UpdatedAt: now,
		Metadata: map[string]any{"template": "reminder_gentle"},
	}
	failed := &domain.ReminderEvent{
		ID: node.Generate(), OrgID: orgID, AutomationID: sent.AutomationID, InvoiceID: sent.InvoiceID, ClientID: clientID,
		Stage: domain.StageGentle, Channel: channel.Email, Status: domain.EventStatusFailed,
		SentAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.InsertEvent(ctx, gdb, sent))
	require.NoError(t, repo.InsertEvent(ctx, gdb, failed))

	pending, err := repo.FindLatestPendingEvent(ctx, gdb, orgID, clientID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, sent.ID, pending.ID)
	assert.Equal(t, "reminder_gentle", pending.Metadata["template"])

	ok, err := repo.UpdateDeliveryStatus(ctx, gdb, orgID, deliveryID, domain.EventStatusRead, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.UpdateDeliveryStatus(ctx, gdb, orgID, deliveryID, domain.EventStatusDelivered, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "status never moves backwards")

	ok, err = repo.RecordResponse(ctx, gdb, orgID, sent.ID, "will pay friday", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.RecordResponse(ctx, gdb, orgID, sent.ID, "again", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err = repo.FindLatestPendingEvent(ctx, gdb, orgID, clientID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	events, err := repo.ListEvents(ctx, gdb, orgID, sent.AutomationID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStatusRead, events[0].Status)
	assert.NotNil(t, events[0].DeliveredAt)
	assert.NotNil(t, events[0].ReadAt)
	assert.True(t, events[0].Responded)
	assert.Equal(t, "will pay friday", *events[0].ResponseContent)
}
