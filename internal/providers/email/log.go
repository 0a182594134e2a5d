package email

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"go.uber.org/zap"
)

// LogSender renders and logs messages instead of delivering them. Used when SMTP is not configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("email.log")}
}

func (s *LogSender) Send(_ context.Context, msg channel.Message) (channel.Delivery, error) {
	rendered, err := channel.Render(msg.Template, msg.Variables)
	if err != nil {
		return channel.Delivery{}, err
	}
	id := ulid.Make().String()
	s.log.Info("email.skipped",
		zap.String("template", string(msg.Template)),
		zap.String("subject", rendered.Subject),
		zap.Int("attachments", len(msg.Attachments)),
		zap.String("delivery_id", id),
	)
	return channel.Delivery{DeliveryID: id}, nil
}

var _ channel.Sender = (*LogSender)(nil)
