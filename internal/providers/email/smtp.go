package email

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender delivers rendered channel messages over SMTP.
type SMTPSender struct {
	cfg Config
	log *zap.Logger
}

func NewSMTPSender(cfg Config, log *zap.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: log.Named("email.smtp")}
}

func (s *SMTPSender) Send(ctx context.Context, msg channel.Message) (channel.Delivery, error) {
	rendered, err := channel.Render(msg.Template, msg.Variables)
	if err != nil {
		return channel.Delivery{}, err
	}

	mail, messageID, err := s.buildMessage(msg, rendered)
	if err != nil {
		return channel.Delivery{}, err
	}

	client, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return channel.Delivery{}, fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, mail); err != nil {
		return channel.Delivery{}, fmt.Errorf("smtp send: %w", err)
	}

	s.log.Debug("email.sent", zap.String("template", string(msg.Template)), zap.String("delivery_id", messageID))
	return channel.Delivery{DeliveryID: messageID}, nil
}

func (s *SMTPSender) buildMessage(msg channel.Message, rendered channel.Rendered) (*gomail.Msg, string, error) {
	mail := gomail.NewMsg()
	if err := mail.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return nil, "", fmt.Errorf("smtp from: %w", err)
	}
	if err := mail.To(strings.TrimSpace(msg.Recipient)); err != nil {
		return nil, "", fmt.Errorf("smtp to: %w", err)
	}
	mail.Subject(rendered.Subject)
	mail.SetBodyString(gomail.TypeTextPlain, rendered.Body)

	for _, att := range msg.Attachments {
		if err := mail.AttachReader(att.FileName, bytes.NewReader(att.Content)); err != nil {
			return nil, "", fmt.Errorf("smtp attach %s: %w", att.FileName, err)
		}
	}

	messageID := ulid.Make().String() + "@" + senderDomain(s.cfg.From)
	mail.SetMessageIDWithValue(messageID)
	return mail, messageID, nil
}

func senderDomain(from string) string {
	if at := strings.LastIndexByte(from, '@'); at >= 0 && at < len(from)-1 {
		return from[at+1:]
	}
	return "localhost"
}

var _ channel.Sender = (*SMTPSender)(nil)
