// Package domain defines the recovery assistant: text completions enriched with account
// context, and the typed actions a completion may suggest.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	behaviordomain "github.com/smallbiznis/invoicerecovery/internal/behavior/domain"
	ingestiondomain "github.com/smallbiznis/invoicerecovery/internal/ingestion/domain"
)

var (
	ErrAssistantUnavailable = errors.New("assistant_unavailable")
	ErrInvalidPrompt        = errors.New("invalid_prompt")
	ErrInvalidAction        = errors.New("invalid_action")
	ErrUnsupportedAction    = errors.New("unsupported_action")
)

type CompletionRequest struct {
	Prompt  string
	Context map[string]any
}

// RawAction is an action as it crosses the wire. Parse it with ParseAction before use.
type RawAction struct {
	Type   string         `json:"type"`
	Label  string         `json:"label"`
	Params map[string]any `json:"params,omitempty"`
}

type Completion struct {
	Content          string
	SuggestedActions []RawAction
}

// Generator produces a completion for a prompt and its context.
type Generator interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type InsightSeverity string

const (
	SeverityInfo    InsightSeverity = "info"
	SeverityWarning InsightSeverity = "warning"
)

// Insight is a rule-derived observation about a client.
type Insight struct {
	Code     string          `json:"code"`
	Severity InsightSeverity `json:"severity"`
	Message  string          `json:"message"`
}

type ChatRequest struct {
	Message   string        `json:"message"`
	ClientID  *snowflake.ID `json:"client_id,omitempty"`
	InvoiceID *snowflake.ID `json:"invoice_id,omitempty"`
}

type ChatResponse struct {
	Reply    string      `json:"reply"`
	Actions  []RawAction `json:"actions"`
	Insights []Insight   `json:"insights"`
}

// ActionResult carries whichever record the executed action produced.
type ActionResult struct {
	Type       ActionType                          `json:"type"`
	Automation *automationdomain.AutomatedReminder `json:"automation,omitempty"`
	Payment    *ingestiondomain.PaymentResult      `json:"payment,omitempty"`
	Profile    *behaviordomain.Profile             `json:"profile,omitempty"`
}

type Service interface {
	Chat(ctx context.Context, orgID snowflake.ID, req ChatRequest) (ChatResponse, error)
	Execute(ctx context.Context, orgID snowflake.ID, raw RawAction) (ActionResult, error)
	Insights(ctx context.Context, orgID, clientID snowflake.ID) ([]Insight, error)
}
