// Package channel defines the outbound messaging contract shared by reminder dispatch and receipts.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Channel string

const (
	Email    Channel = "email"
	WhatsApp Channel = "whatsapp"
)

var (
	ErrUnsupportedChannel = errors.New("unsupported_channel")
	ErrMissingRecipient   = errors.New("missing_recipient")
	ErrUnknownTemplate    = errors.New("unknown_template")
)

// Parse validates a channel name.
func Parse(raw string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(raw))); c {
	case Email, WhatsApp:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, raw)
	}
}

func (c Channel) Valid() bool {
	return c == Email || c == WhatsApp
}

type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Message is a templated outbound message. Recipient is an e-mail address or an E.164 phone number.
type Message struct {
	Channel     Channel
	Recipient   string
	Template    Template
	Variables   map[string]string
	Attachments []Attachment
}

// Delivery identifies an accepted message at the provider.
type Delivery struct {
	DeliveryID string
}

type Sender interface {
	Send(ctx context.Context, msg Message) (Delivery, error)
}

// Router dispatches messages to the sender registered for their channel.
type Router struct {
	senders map[Channel]Sender
}

func NewRouter(senders map[Channel]Sender) *Router {
	registered := make(map[Channel]Sender, len(senders))
	for ch, s := range senders {
		if s != nil {
			registered[ch] = s
		}
	}
	return &Router{senders: registered}
}

func (r *Router) Send(ctx context.Context, msg Message) (Delivery, error) {
	if strings.TrimSpace(msg.Recipient) == "" {
		return Delivery{}, ErrMissingRecipient
	}
	sender, ok := r.senders[msg.Channel]
	if !ok {
		return Delivery{}, fmt.Errorf("%w: %q", ErrUnsupportedChannel, msg.Channel)
	}
	return sender.Send(ctx, msg)
}

var _ Sender = (*Router)(nil)
