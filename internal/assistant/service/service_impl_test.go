package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	automationrepo "github.com/smallbiznis/invoicerecovery/internal/automation/repository"
	automationservice "github.com/smallbiznis/invoicerecovery/internal/automation/service"
	behaviorrepo "github.com/smallbiznis/invoicerecovery/internal/behavior/repository"
	behaviorservice "github.com/smallbiznis/invoicerecovery/internal/behavior/service"
	clientdomain "github.com/smallbiznis/invoicerecovery/internal/client/domain"
	clientrepo "github.com/smallbiznis/invoicerecovery/internal/client/repository"
	"github.com/smallbiznis/invoicerecovery/internal/clock"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	ingestionservice "github.com/smallbiznis/invoicerecovery/internal/ingestion/service"
	invoicedomain "github.com/smallbiznis/invoicerecovery/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/invoicerecovery/internal/invoice/repository"
	"github.com/smallbiznis/invoicerecovery/internal/lock"
	"github.com/smallbiznis/invoicerecovery/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Completion), args.Error(1)
}

// Monday 09:00 UTC
var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	generator   *mockGenerator
	automations automationdomain.Service
	svc         domain.Service
	orgID       snowflake.ID
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	gdb := testsupport.OpenDB(t)
	node := testsupport.Node(t)
	clk := clock.NewFakeClock(start)
	recovery := config.NewStaticRecoveryConfigHolder(config.DefaultRecoveryConfig())
	appConfig := config.Config{Assistant: config.AssistantConfig{Timeout: timeout}}
	generator := &mockGenerator{}
	repo := automationrepo.Provide()

	behavior := behaviorservice.New(behaviorservice.Params{
		DB:          gdb,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Recovery:    recovery,
		Repo:        behaviorrepo.Provide(),
		ClientRepo:  clientrepo.Provide(),
		InvoiceRepo: invoicerepo.Provide(),
	})
	automations := automationservice.New(automationservice.Params{
		DB:          gdb,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Recovery:    recovery,
		Locker:      lock.NewLocalLocker(),
		Repo:        repo,
		InvoiceRepo: invoicerepo.Provide(),
		ClientRepo:  clientrepo.Provide(),
		Behavior:    behavior,
	})
	ingestion := ingestionservice.New(ingestionservice.Params{
		DB:             gdb,
		Log:            zap.NewNop(),
		Clock:          clk,
		AppConfig:      appConfig,
		Recovery:       recovery,
		InvoiceRepo:    invoicerepo.Provide(),
		ClientRepo:     clientrepo.Provide(),
		AutomationRepo: repo,
		Automations:    automations,
		Behavior:       behavior,
	})

	return &fixture{
		db:          gdb,
		node:        node,
		clock:       clk,
		generator:   generator,
		automations: automations,
		orgID:       node.Generate(),
		svc: New(Params{
			DB:          gdb,
			Log:         zap.NewNop(),
			Clock:       clk,
			AppConfig:   appConfig,
			Generator:   generator,
			InvoiceRepo: invoicerepo.Provide(),
			Automations: automations,
			Behavior:    behavior,
			Ingestion:   ingestion,
		}),
	}
}

func (f *fixture) invoice(t *testing.T) (clientdomain.Client, invoicedomain.Invoice) {
	t.Helper()
	c := testsupport.SeedClient(t, f.db, f.node, f.orgID, "Acme Ltd", "ap@acme.test", "")
	inv := testsupport.SeedInvoice(t, f.db, f.node, c, "INV-1001", 125000, start.AddDate(0, 0, -10))
	return c, inv
}

func TestChatBuildsContextAndFiltersActions(t *testing.T) {
	f := newFixture(t, time.Second)
	c, inv := f.invoice(t)
	invoiceID := inv.ID

	f.generator.On("Complete", mock.Anything, mock.MatchedBy(func(req domain.CompletionRequest) bool {
		invoice, ok := req.Context["invoice"].(map[string]any)
		return req.Prompt == "What should I do next?" &&
			ok && invoice["number"] == "INV-1001" && invoice["days_overdue"] == 10 &&
			req.Context["client_id"] == c.ID.String()
	})).Return(domain.Completion{
		Content: "Start a reminder sequence.",
		SuggestedActions: []domain.RawAction{
			{Type: "send_reminder", Label: "Start reminders", Params: map[string]any{"invoice_id": inv.ID.String()}},
			{Type: "delete_everything", Label: "Nope"},
		},
	}, nil).Once()

	resp, err := f.svc.Chat(context.Background(), f.orgID, domain.ChatRequest{Message: "  What should I do next? ", InvoiceID: &invoiceID})
	require.NoError(t, err)
	assert.Equal(t, "Start a reminder sequence.", resp.Reply)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "send_reminder", resp.Actions[0].Type)
	require.Len(t, resp.Insights, 1)
	assert.Equal(t, "no_history", resp.Insights[0].Code)
	f.generator.AssertExpectations(t)
}

func TestChatGeneratorFailureIsUnavailable(t *testing.T) {
	f := newFixture(t, time.Second)
	f.generator.On("Complete", mock.Anything, mock.Anything).Return(domain.Completion{}, errors.New("quota exceeded")).Once()

	_, err := f.svc.Chat(context.Background(), f.orgID, domain.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrAssistantUnavailable)
}

func TestChatTimesOut(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.generator.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(domain.Completion{}, context.DeadlineExceeded).Once()

	_, err := f.svc.Chat(context.Background(), f.orgID, domain.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrAssistantUnavailable)
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t, time.Second)
	_, err := f.svc.Chat(context.Background(), f.orgID, domain.ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)

	_, err = f.svc.Chat(context.Background(), 0, domain.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, automationdomain.ErrInvalidOrganization)

	missing := f.node.Generate()
	_, err = f.svc.Chat(context.Background(), f.orgID, domain.ChatRequest{Message: "hi", InvoiceID: &missing})
	assert.ErrorIs(t, err, automationdomain.ErrInvoiceNotFound)
	f.generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestExecuteSendReminderStartsThenMakesDue(t *testing.T) {
	f := newFixture(t, time.Second)
	_, inv := f.invoice(t)
	ctx := context.Background()
	raw := domain.RawAction{Type: "send_reminder", Params: map[string]any{"invoice_id": inv.ID.String()}}

	first, err := f.svc.Execute(ctx, f.orgID, raw)
	require.NoError(t, err)
	require.NotNil(t, first.Automation)
	assert.Equal(t, domain.ActionSendReminder, first.Type)
	assert.Equal(t, start.Add(time.Hour), first.Automation.NextScheduledAt.UTC())

	f.clock.Advance(10 * time.Minute)
	second, err := f.svc.Execute(ctx, f.orgID, raw)
	require.NoError(t, err)
	require.NotNil(t, second.Automation)
	assert.Equal(t, first.Automation.ID, second.Automation.ID)
	assert.Equal(t, f.clock.Now(), second.Automation.NextScheduledAt.UTC())
}

func TestExecuteMarkPaidAnalyzeAndFollowup(t *testing.T) {
	f := newFixture(t, time.Second)
	c, inv := f.invoice(t)
	ctx := context.Background()

	a, err := f.automations.Start(ctx, f.orgID, automationdomain.StartRequest{InvoiceID: inv.ID})
	require.NoError(t, err)

	followup, err := f.svc.Execute(ctx, f.orgID, domain.RawAction{
		Type:   "schedule_followup",
		Params: map[string]any{"automation_id": a.ID.String(), "days": float64(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, start.Add(48*time.Hour), followup.Automation.NextScheduledAt.UTC())

	paid, err := f.svc.Execute(ctx, f.orgID, domain.RawAction{Type: "mark_paid", Params: map[string]any{"invoice_id": inv.ID.String()}})
	require.NoError(t, err)
	require.NotNil(t, paid.Payment)
	assert.True(t, paid.Payment.InvoicePaid)
	assert.True(t, paid.Payment.AutomationStopped)

	analyzed, err := f.svc.Execute(ctx, f.orgID, domain.RawAction{Type: "analyze", Params: map[string]any{"client_id": c.ID.String()}})
	require.NoError(t, err)
	require.NotNil(t, analyzed.Profile)
	assert.Equal(t, 1, analyzed.Profile.PaidInvoices())

	insights, err := f.svc.Insights(ctx, f.orgID, c.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, insights)
	assert.NotEqual(t, "no_history", insights[0].Code)
}

func TestExecuteRejectsInvalidActions(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, f.orgID, domain.RawAction{Type: "refund"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedAction)

	_, err = f.svc.Execute(ctx, f.orgID, domain.RawAction{Type: "mark_paid"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	_, err = f.svc.Execute(ctx, 0, domain.RawAction{Type: "mark_paid", Params: map[string]any{"invoice_id": "1"}})
	assert.ErrorIs(t, err, automationdomain.ErrInvalidOrganization)
}
