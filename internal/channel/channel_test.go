package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) (Delivery, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(Delivery), args.Error(1)
}

func TestParse(t *testing.T) {
	ch, err := Parse(" WhatsApp ")
	require.NoError(t, err)
	assert.Equal(t, WhatsApp, ch)

	_, err = Parse("sms")
	assert.ErrorIs(t, err, ErrUnsupportedChannel)
}

func TestRouterDispatchesByChannel(t *testing.T) {
	email := &mockSender{}
	msg := Message{Channel: Email, Recipient: "a@example.com", Template: TemplateReminderGentle}
	email.On("Send", mock.Anything, msg).Return(Delivery{DeliveryID: "m-1"}, nil).Once()

	router := NewRouter(map[Channel]Sender{Email: email, WhatsApp: nil})

	delivery, err := router.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "m-1", delivery.DeliveryID)
	email.AssertExpectations(t)

	_, err = router.Send(context.Background(), Message{Channel: WhatsApp, Recipient: "+14155552671"})
	assert.ErrorIs(t, err, ErrUnsupportedChannel)

	_, err = router.Send(context.Background(), Message{Channel: Email})
	assert.ErrorIs(t, err, ErrMissingRecipient)
}

func TestRenderReminderTemplates(t *testing.T) {
	vars := map[string]string{
		"client_name":    "Acme",
		"invoice_number": "INV-7",
		"amount":         "$1,250.00",
		"due_date":       "1 Mar 2026",
		"days_overdue":   "9",
		"sender_name":    "Accounts Receivable",
	}
	for _, stage := range []string{"gentle", "standard", "urgent", "final"} {
		t.Run(stage, func(t *testing.T) {
			out, err := Render(ReminderTemplate(stage), vars)
			require.NoError(t, err)
			assert.Contains(t, out.Subject, "INV-7")
			assert.Contains(t, out.Body, "$1,250.00")
			assert.NotContains(t, out.Body, "discount")
		})
	}
}

func TestRenderIncludesDiscount(t *testing.T) {
	out, err := Render(TemplateReminderStandard, map[string]string{"invoice_number": "INV-7", "discount_percent": "5"})
	require.NoError(t, err)
	assert.Contains(t, out.Body, "5% discount")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render(Template("nope"), nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}
