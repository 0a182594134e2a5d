package generator

import (
	"context"
	"testing"

	"github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCompletion(t *testing.T) {
	got := ParseCompletion("```json\n{\"reply\":\"Send a firmer reminder.\",\"actions\":[{\"type\":\"send_reminder\",\"label\":\"Remind\",\"params\":{\"invoice_id\":\"42\"}}]}\n```")
	assert.Equal(t, "Send a firmer reminder.", got.Content)
	require.Len(t, got.SuggestedActions, 1)
	assert.Equal(t, "send_reminder", got.SuggestedActions[0].Type)
	assert.Equal(t, "42", got.SuggestedActions[0].Params["invoice_id"])
}

func TestParseCompletionFallsBackToText(t *testing.T) {
	got := ParseCompletion("  The client usually pays on Thursdays.  ")
	assert.Equal(t, "The client usually pays on Thursdays.", got.Content)
	assert.Empty(t, got.SuggestedActions)

	got = ParseCompletion(`{"actions":[]}`)
	assert.Equal(t, `{"actions":[]}`, got.Content)
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	gen, err := New(config.Config{}, zap.NewNop())
	require.NoError(t, err)

	_, err = gen.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, domain.ErrAssistantUnavailable)
}
