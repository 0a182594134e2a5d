package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	assistantdomain "github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	ingestiondomain "github.com/smallbiznis/invoicerecovery/internal/ingestion/domain"
	"github.com/smallbiznis/invoicerecovery/internal/observability"
	"github.com/smallbiznis/invoicerecovery/internal/ratelimit"
	"github.com/smallbiznis/invoicerecovery/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAutomations struct{ mock.Mock }

func (m *mockAutomations) Start(ctx context.Context, orgID snowflake.ID, req automationdomain.StartRequest) (automationdomain.AutomatedReminder, error) {
	args := m.Called(ctx, orgID, req)
	return args.Get(0).(automationdomain.AutomatedReminder), args.Error(1)
}

func (m *mockAutomations) Stop(ctx context.Context, orgID, automationID snowflake.ID) (automationdomain.AutomatedReminder, error) {
	args := m.Called(ctx, orgID, automationID)
	return args.Get(0).(automationdomain.AutomatedReminder), args.Error(1)
}

func (m *mockAutomations) MarkPaymentReceived(ctx context.Context, orgID, automationID snowflake.ID) (automationdomain.AutomatedReminder, error) {
	args := m.Called(ctx, orgID, automationID)
	return args.Get(0).(automationdomain.AutomatedReminder), args.Error(1)
}

func (m *mockAutomations) Reschedule(ctx context.Context, orgID, automationID snowflake.ID, at time.Time) (automationdomain.AutomatedReminder, error) {
	args := m.Called(ctx, orgID, automationID, at)
	return args.Get(0).(automationdomain.AutomatedReminder), args.Error(1)
}

func (m *mockAutomations) MakeDueNow(ctx context.Context, orgID, automationID snowflake.ID) (automationdomain.AutomatedReminder, error) {
	args := m.Called(ctx, orgID, automationID)
	return args.Get(0).(automationdomain.AutomatedReminder), args.Error(1)
}

func (m *mockAutomations) Get(ctx context.Context, orgID, automationID snowflake.ID) (automationdomain.AutomatedReminder, error) {
	args := m.Called(ctx, orgID, automationID)
	return args.Get(0).(automationdomain.AutomatedReminder), args.Error(1)
}

func (m *mockAutomations) GetActiveByInvoice(ctx context.Context, orgID, invoiceID snowflake.ID) (automationdomain.Detail, error) {
	args := m.Called(ctx, orgID, invoiceID)
	return args.Get(0).(automationdomain.Detail), args.Error(1)
}

func (m *mockAutomations) ListEvents(ctx context.Context, orgID, automationID snowflake.ID) ([]automationdomain.ReminderEvent, error) {
	args := m.Called(ctx, orgID, automationID)
	return args.Get(0).([]automationdomain.ReminderEvent), args.Error(1)
}

type mockBehavior struct{ mock.Mock }

func (m *mockBehavior) AnalyzeClient(ctx context.Context, orgID, clientID snowflake.ID) (behaviordomain.Profile, error) {
	args := m.Called(ctx, orgID, clientID)
	return args.Get(0).(behaviordomain.Profile), args.Error(1)
}

func (m *mockBehavior) AnalyzeOrganization(ctx context.Context, orgID snowflake.ID) (behaviordomain.AnalyzeOrganizationResult, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(behaviordomain.AnalyzeOrganizationResult), args.Error(1)
}

func (m *mockBehavior) GetProfile(ctx context.Context, orgID, clientID snowflake.ID) (behaviordomain.Profile, error) {
	args := m.Called(ctx, orgID, clientID)
	return args.Get(0).(behaviordomain.Profile), args.Error(1)
}

func (m *mockBehavior) GetOrAnalyze(ctx context.Context, orgID, clientID snowflake.ID) (behaviordomain.Profile, error) {
	args := m.Called(ctx, orgID, clientID)
	return args.Get(0).(behaviordomain.Profile), args.Error(1)
}

type mockIngestion struct{ mock.Mock }

func (m *mockIngestion) HandlePaymentWebhook(ctx context.Context, orgID snowflake.ID, req ingestiondomain.PaymentWebhook) (ingestiondomain.PaymentResult, error) {
	args := m.Called(ctx, orgID, req)
	return args.Get(0).(ingestiondomain.PaymentResult), args.Error(1)
}

func (m *mockIngestion) HandleInboundReply(ctx context.Context, orgID snowflake.ID, req ingestiondomain.InboundReply) (ingestiondomain.ReplyResult, error) {
	args := m.Called(ctx, orgID, req)
	return args.Get(0).(ingestiondomain.ReplyResult), args.Error(1)
}

func (m *mockIngestion) HandleDeliveryStatus(ctx context.Context, orgID snowflake.ID, req ingestiondomain.DeliveryStatus) (bool, error) {
	args := m.Called(ctx, orgID, req)
	return args.Bool(0), args.Error(1)
}

type mockAssistant struct{ mock.Mock }

func (m *mockAssistant) Chat(ctx context.Context, orgID snowflake.ID, req assistantdomain.ChatRequest) (assistantdomain.ChatResponse, error) {
	args := m.Called(ctx, orgID, req)
	return args.Get(0).(assistantdomain.ChatResponse), args.Error(1)
}

func (m *mockAssistant) Execute(ctx context.Context, orgID snowflake.ID, raw assistantdomain.RawAction) (assistantdomain.ActionResult, error) {
	args := m.Called(ctx, orgID, raw)
	return args.Get(0).(assistantdomain.ActionResult), args.Error(1)
}

func (m *mockAssistant) Insights(ctx context.Context, orgID, clientID snowflake.ID) ([]assistantdomain.Insight, error) {
	args := m.Called(ctx, orgID, clientID)
	return args.Get(0).([]assistantdomain.Insight), args.Error(1)
}

type mockSweeper struct{ mock.Mock }

func (m *mockSweeper) RunOnce(ctx context.Context) (scheduler.SweepResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(scheduler.SweepResult), args.Error(1)
}

const (
	orgID     snowflake.ID = 1850000000000000001
	invoiceID snowflake.ID = 1850000000000000002
	clientID  snowflake.ID = 1850000000000000003
	autoID    snowflake.ID = 1850000000000000004
)

type testServer struct {
	engine      *gin.Engine
	server      *Server
	automations *mockAutomations
	behavior    *mockBehavior
	ingestion   *mockIngestion
	assistant   *mockAssistant
	sweeper     *mockSweeper
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		engine:      NewEngine(zap.NewNop(), observability.Config{}),
		automations: &mockAutomations{},
		behavior:    &mockBehavior{},
		ingestion:   &mockIngestion{},
		assistant:   &mockAssistant{},
		sweeper:     &mockSweeper{},
	}
	ts.server = newServer(ts.engine, cfg, zap.NewNop(), ts.automations, ts.behavior, ts.ingestion, ts.assistant, ts.sweeper)
	ts.server.RegisterRoutes()

	t.Cleanup(func() {
		ts.automations.AssertExpectations(t)
		ts.behavior.AssertExpectations(t)
		ts.ingestion.AssertExpectations(t)
		ts.assistant.AssertExpectations(t)
		ts.sweeper.AssertExpectations(t)
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func orgPath(suffix string) string {
	return "/v1/orgs/" + orgID.String() + suffix
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStartAutomation(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.automations.On("Start", mock.Anything, orgID, automationdomain.StartRequest{InvoiceID: invoiceID, Smart: true}).
		Return(automationdomain.AutomatedReminder{ID: autoID, OrgID: orgID, InvoiceID: invoiceID, CurrentStage: automationdomain.StageGentle}, nil).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/invoices/"+invoiceID.String()+"/automation"), gin.H{"smart": true})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Data automationdomain.AutomatedReminder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, autoID, resp.Data.ID)
	assert.Equal(t, automationdomain.StageGentle, resp.Data.CurrentStage)
}

func TestStartAutomationWithoutBody(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.automations.On("Start", mock.Anything, orgID, automationdomain.StartRequest{InvoiceID: invoiceID}).
		Return(automationdomain.AutomatedReminder{ID: autoID}, nil).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/invoices/"+invoiceID.String()+"/automation"), nil)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestStartAutomationMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"already active", automationdomain.ErrAutomationAlreadyActive, http.StatusConflict, "conflict"},
		{"not payable", automationdomain.ErrInvoiceNotPayable, http.StatusConflict, "conflict"},
		{"invoice missing", automationdomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found"},
		{"invalid org", automationdomain.ErrInvalidOrganization, http.StatusBadRequest, "validation_error"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, config.Config{})
			ts.automations.On("Start", mock.Anything, orgID, mock.Anything).
				Return(automationdomain.AutomatedReminder{}, tc.err).Once()

			rec := ts.do(t, http.MethodPost, orgPath("/invoices/"+invoiceID.String()+"/automation"), nil)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.typ, decodeError(t, rec).Type)
		})
	}
}

func TestInvalidPathIDsAreRejected(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	rec := ts.do(t, http.MethodPost, "/v1/orgs/not-a-number/invoices/"+invoiceID.String()+"/automation", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "organization", payload.Errors[0].Field)

	rec = ts.do(t, http.MethodGet, orgPath("/invoices/abc/automation"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_invoice", decodeError(t, rec).Errors[0].Code)
}

func TestGetInvoiceAutomationReturnsEvents(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	detail := automationdomain.Detail{
		Automation: automationdomain.AutomatedReminder{ID: autoID},
		Events:     []automationdomain.ReminderEvent{{ID: 77, AutomationID: autoID}},
	}
	ts.automations.On("GetActiveByInvoice", mock.Anything, orgID, invoiceID).Return(detail, nil).Once()

	rec := ts.do(t, http.MethodGet, orgPath("/invoices/"+invoiceID.String()+"/automation"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data automationdomain.Detail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, autoID, resp.Data.Automation.ID)
	assert.Len(t, resp.Data.Events, 1)
}

func TestStopInvoiceAutomation(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.automations.On("GetActiveByInvoice", mock.Anything, orgID, invoiceID).
		Return(automationdomain.Detail{Automation: automationdomain.AutomatedReminder{ID: autoID}}, nil).Once()
	ts.automations.On("Stop", mock.Anything, orgID, autoID).
		Return(automationdomain.AutomatedReminder{ID: autoID, Status: automationdomain.StatusCompleted}, nil).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/invoices/"+invoiceID.String()+"/automation/stop"), nil)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestStopInvoiceAutomationWithoutActiveAutomation(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.automations.On("GetActiveByInvoice", mock.Anything, orgID, invoiceID).
		Return(automationdomain.Detail{}, automationdomain.ErrAutomationNotFound).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/invoices/"+invoiceID.String()+"/automation/stop"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "automation_not_found", decodeError(t, rec).Message)
}

func TestRescheduleAutomation(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	ts.automations.On("Reschedule", mock.Anything, orgID, autoID, at).
		Return(automationdomain.AutomatedReminder{ID: autoID, NextScheduledAt: &at}, nil).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/automations/"+autoID.String()+"/reschedule"), gin.H{"at": "2026-04-01"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, orgPath("/automations/"+autoID.String()+"/reschedule"), gin.H{"at": "next week"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientProfileRoutes(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	profile := behaviordomain.Profile{ClientID: clientID, AvgPaymentDays: 4.5}
	ts.behavior.On("AnalyzeClient", mock.Anything, orgID, clientID).Return(profile, nil).Once()
	ts.behavior.On("GetProfile", mock.Anything, orgID, clientID).Return(behaviordomain.Profile{}, behaviordomain.ErrProfileNotFound).Once()
	ts.behavior.On("AnalyzeOrganization", mock.Anything, orgID).Return(behaviordomain.AnalyzeOrganizationResult{Analyzed: 3}, nil).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/clients/"+clientID.String()+"/analyze"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, orgPath("/clients/"+clientID.String()+"/profile"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "profile_not_found", decodeError(t, rec).Message)

	rec = ts.do(t, http.MethodPost, orgPath("/clients/analyze"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"analyzed":3,"failed":0}}`, rec.Body.String())
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.ingestion.On("HandlePaymentWebhook", mock.Anything, orgID, ingestiondomain.PaymentWebhook{InvoiceID: invoiceID, Status: "completed"}).
		Return(ingestiondomain.PaymentResult{InvoicePaid: true, AutomationStopped: true}, nil).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/webhooks/payments"), gin.H{"invoice_id": invoiceID.String(), "status": "completed"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data ingestiondomain.PaymentResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.InvoicePaid)
	assert.True(t, resp.Data.AutomationStopped)
}

func TestPaymentWebhookRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	req := httptest.NewRequest(http.MethodPost, orgPath("/webhooks/payments"), bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Errors[0].Code)
}

func TestWebhooksAreRateLimitedPerOrganization(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	limits := config.Config{Webhooks: config.WebhookConfig{RatePerSecond: 0.01, Burst: 1}}
	ts.server.limiter = ratelimit.NewWebhookLimiter(limits, nil, zap.NewNop())
	ts.ingestion.On("HandleDeliveryStatus", mock.Anything, orgID, mock.Anything).Return(false, nil).Once()

	body := gin.H{"delivery_id": "wamid-2", "status": "delivered"}
	rec := ts.do(t, http.MethodPost, orgPath("/webhooks/delivery"), body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = ts.do(t, http.MethodPost, orgPath("/webhooks/delivery"), body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
}

func TestInboundReplyUnknownSender(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.ingestion.On("HandleInboundReply", mock.Anything, orgID, mock.MatchedBy(func(req ingestiondomain.InboundReply) bool {
		return req.Sender == "+15550000000" && req.Body == "paid yesterday"
	})).Return(ingestiondomain.ReplyResult{}, ingestiondomain.ErrUnknownSender).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/webhooks/inbound"), gin.H{
		"channel": "whatsapp",
		"sender":  "+15550000000",
		"body":    "paid yesterday",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeliveryStatusWebhook(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.ingestion.On("HandleDeliveryStatus", mock.Anything, orgID, mock.MatchedBy(func(req ingestiondomain.DeliveryStatus) bool {
		return req.DeliveryID == "wamid-1" && req.Status == automationdomain.EventStatusRead
	})).Return(true, nil).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/webhooks/delivery"), gin.H{"delivery_id": "wamid-1", "status": "read"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"updated":true}}`, rec.Body.String())
}

func TestAssistantChatUnavailable(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.assistant.On("Chat", mock.Anything, orgID, assistantdomain.ChatRequest{Message: "who owes us?"}).
		Return(assistantdomain.ChatResponse{}, assistantdomain.ErrAssistantUnavailable).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/assistant/chat"), gin.H{"message": "who owes us?"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decodeError(t, rec).Type)
}

func TestAssistantActionRejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.assistant.On("Execute", mock.Anything, orgID, assistantdomain.RawAction{Type: "wire_money"}).
		Return(assistantdomain.ActionResult{}, assistantdomain.ErrUnsupportedAction).Once()

	rec := ts.do(t, http.MethodPost, orgPath("/assistant/actions"), gin.H{"type": "wire_money"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_action", decodeError(t, rec).Errors[0].Code)
}

func TestClientInsights(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.assistant.On("Insights", mock.Anything, orgID, clientID).
		Return([]assistantdomain.Insight{{Code: "slow_payer", Severity: assistantdomain.SeverityWarning}}, nil).Once()

	rec := ts.do(t, http.MethodGet, orgPath("/clients/"+clientID.String()+"/insights"), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slow_payer")
}

func TestInternalSweepRequiresToken(t *testing.T) {
	ts := newTestServer(t, config.Config{InternalToken: "s3cret"})
	ts.sweeper.On("RunOnce", mock.Anything).Return(scheduler.SweepResult{Processed: 2, Sent: 2, Escalated: 2}, nil).Once()

	rec := ts.do(t, http.MethodPost, "/v1/internal/sweeps", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/internal/sweeps", nil, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data scheduler.SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Sent)
}

func TestInternalSweepOpenWithoutToken(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	ts.sweeper.On("RunOnce", mock.Anything).Return(scheduler.SweepResult{}, nil).Once()

	rec := ts.do(t, http.MethodPost, "/v1/internal/sweeps", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMapErrorUnwrapsValidationCode(t *testing.T) {
	status, payload := mapError(fmt.Errorf("%w: missing invoice_id", ingestiondomain.ErrInvalidWebhook))

	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_webhook", payload.Errors[0].Code)
	assert.Equal(t, "webhook", payload.Errors[0].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(automationdomain.ErrVersionConflict)
	assert.Equal(t, "conflict", typ)
	assert.Equal(t, "version_conflict", code)

	typ, code = classifyErrorForLog(assert.AnError)
	assert.Equal(t, "internal_error", typ)
	assert.Equal(t, "internal_error", code)
}
