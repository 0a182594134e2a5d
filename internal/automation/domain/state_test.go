package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newActive(stage Stage) *AutomatedReminder {
	next := t0
	return &AutomatedReminder{
		ID:              1,
		OrgID:           2,
		InvoiceID:       3,
		CurrentStage:    stage,
		Status:          StatusActive,
		NextScheduledAt: &next,
		Version:         1,
	}
}

func TestStageNext(t *testing.T) {
	next, ok := StageGentle.Next()
	assert.True(t, ok)
	assert.Equal(t, StageStandard, next)

	_, ok = StageFinal.Next()
	assert.False(t, ok)

	assert.Equal(t, -1, Stage("bogus").Index())
}

func TestStagesOnlyAdvanceForward(t *testing.T) {
	a := newActive(StageGentle)
	prev := a.CurrentStage.Index()
	for i := 0; i < 10; i++ {
		next := t0.Add(time.Duration(i+1) * 24 * time.Hour)
		err := a.RecordSend(a.CurrentStage, nil, t0, &next)
		if !a.IsActive() {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, prev+1, a.CurrentStage.Index())
		prev = a.CurrentStage.Index()
	}

	assert.Equal(t, StageFinal, a.CurrentStage)
	assert.Equal(t, StatusCompleted, a.Status)
	assert.Equal(t, 4, a.TotalRemindersSent)
	assert.Equal(t, 3, a.ReminderCount)
	require.NotNil(t, a.StopReason)
	assert.Equal(t, StopReasonStageExhausted, *a.StopReason)
	assert.Nil(t, a.NextScheduledAt)
}

func TestEscalateRejectedAtFinalAndWhenCompleted(t *testing.T) {
	a := newActive(StageFinal)
	assert.False(t, a.CanEscalate())
	assert.ErrorIs(t, a.Escalate(t0), ErrCannotEscalate)

	b := newActive(StageGentle)
	b.Stop(StopReasonManual, t0)
	assert.ErrorIs(t, b.Escalate(t0), ErrCannotEscalate)
	assert.Equal(t, StageGentle, b.CurrentStage)
}

func TestStopIsIdempotent(t *testing.T) {
	a := newActive(StageStandard)
	require.True(t, a.Stop(StopReasonManual, t0))
	stoppedAt := *a.StoppedAt

	later := t0.Add(time.Hour)
	assert.False(t, a.Stop(StopReasonStageExhausted, later))
	assert.False(t, a.MarkPaymentReceived(later))

	assert.Equal(t, stoppedAt, *a.StoppedAt)
	assert.Equal(t, StopReasonManual, *a.StopReason)
	assert.False(t, a.PaymentReceived)
	assert.ErrorIs(t, a.Reschedule(later, later), ErrNotActive)
	assert.ErrorIs(t, a.RecordSend(StageStandard, nil, later, &later), ErrNotActive)
}

func TestMarkPaymentReceived(t *testing.T) {
	a := newActive(StageUrgent)
	require.True(t, a.MarkPaymentReceived(t0))

	assert.Equal(t, StatusCompleted, a.Status)
	assert.True(t, a.PaymentReceived)
	assert.Equal(t, t0, *a.PaymentReceivedAt)
	assert.Equal(t, StopReasonPaymentReceived, *a.StopReason)
	assert.Nil(t, a.NextScheduledAt)
}

func TestRecordSendValidation(t *testing.T) {
	a := newActive(StageStandard)
	assert.ErrorIs(t, a.RecordSend(StageGentle, nil, t0, &t0), ErrStageMismatch)
	assert.ErrorIs(t, a.RecordSend(StageStandard, nil, t0, nil), ErrMissingNextRun)

	discount := 5.0
	next := t0.Add(48 * time.Hour)
	require.NoError(t, a.RecordSend(StageStandard, &discount, t0, &next))
	assert.Equal(t, StageUrgent, a.CurrentStage)
	assert.Equal(t, StageStandard, *a.LastSentStage)
	assert.Equal(t, 5.0, *a.DiscountOffered)
	assert.Equal(t, next, *a.NextScheduledAt)
}

func TestClaimLease(t *testing.T) {
	a := newActive(StageGentle)
	assert.True(t, a.IsDue(t0))

	require.NoError(t, a.Claim(t0.Add(5*time.Minute), t0))
	assert.False(t, a.IsDue(t0.Add(time.Minute)))
	assert.ErrorIs(t, a.Claim(t0.Add(10*time.Minute), t0.Add(time.Minute)), ErrAlreadyClaimed)

	// expired lease makes the run due again
	assert.True(t, a.IsDue(t0.Add(6*time.Minute)))

	a.ReleaseClaim(t0)
	assert.True(t, a.IsDue(t0))
}

func TestRescheduleRejectedWhileClaimed(t *testing.T) {
	a := newActive(StageGentle)
	require.NoError(t, a.Claim(t0.Add(5*time.Minute), t0))
	version := a.Version

	assert.ErrorIs(t, a.Reschedule(t0.Add(time.Hour), t0.Add(time.Minute)), ErrAlreadyClaimed)
	require.NotNil(t, a.ClaimedUntil)
	assert.Equal(t, version, a.Version)

	later := t0.Add(6 * time.Minute)
	require.NoError(t, a.Reschedule(t0.Add(time.Hour), later))
	assert.Nil(t, a.ClaimedUntil)
	assert.Equal(t, t0.Add(time.Hour), *a.NextScheduledAt)
}
