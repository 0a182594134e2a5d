// Package generator implements assistant text generation on Gemini.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const systemPrompt = `You help a small business recover overdue invoices.
Answer briefly and concretely using the JSON context supplied with each question.
Respond with a JSON object: {"reply": string, "actions": [{"type": string, "label": string, "params": object}]}.
Allowed action types:
- send_reminder {"invoice_id": string, "smart": bool}
- mark_paid {"invoice_id": string}
- analyze {"client_id": string}
- schedule_followup {"automation_id": string, "at": RFC3339 string} or {"automation_id": string, "days": number}
Suggest an action only when the context contains the IDs it needs. IDs are strings.`

type Gemini struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// New returns a Gemini generator, or a generator that always reports the assistant as
// unavailable when no API key is configured.
func New(cfg config.Config, log *zap.Logger) (domain.Generator, error) {
	log = log.Named("assistant.generator")
	if cfg.Assistant.APIKey == "" {
		log.Info("assistant.generator.disabled")
		return Disabled{}, nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.Assistant.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Assistant.Model, log: log}, nil
}

func (g *Gemini) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	contextJSON, err := json.Marshal(req.Context)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("encode context: %w", err)
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", contextJSON, req.Prompt)
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}
	temperature := float32(0.2)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		ResponseMIMEType:  "application/json",
		Temperature:       &temperature,
	})
	if err != nil {
		return domain.Completion{}, err
	}
	return ParseCompletion(resp.Text()), nil
}

type completionPayload struct {
	Reply   string             `json:"reply"`
	Actions []domain.RawAction `json:"actions"`
}

// ParseCompletion reads the structured reply. Text that is not the expected JSON object
// becomes the reply as-is with no actions.
func ParseCompletion(text string) domain.Completion {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var payload completionPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || payload.Reply == "" {
		return domain.Completion{Content: strings.TrimSpace(text)}
	}
	return domain.Completion{Content: payload.Reply, SuggestedActions: payload.Actions}
}

// Disabled is used when no model is configured.
type Disabled struct{}

var errNotConfigured = errors.New("assistant model not configured")

func (Disabled) Complete(context.Context, domain.CompletionRequest) (domain.Completion, error) {
	return domain.Completion{}, fmt.Errorf("%w: %v", domain.ErrAssistantUnavailable, errNotConfigured)
}
