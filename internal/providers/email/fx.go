package email

import (
	"strings"

	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"go.uber.org/zap"
)

// NewFromConfig returns an SMTP sender, or a logging sender when no SMTP host is configured.
func NewFromConfig(cfg config.Config, log *zap.Logger) channel.Sender {
	if strings.TrimSpace(cfg.Email.SMTPHost) == "" {
		return NewLogSender(log)
	}
	return NewSMTPSender(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
		FromName: cfg.Email.SMTPFromName,
	}, log)
}
