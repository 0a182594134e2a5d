package whatsapp

import (
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"go.uber.org/zap"
)

// NewFromConfig returns nil when no gateway is configured; the channel router then rejects WhatsApp sends.
func NewFromConfig(cfg config.Config, log *zap.Logger) channel.Sender {
	if cfg.WhatsApp.BaseURL == "" {
		return nil
	}
	return NewClient(Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		APIKey:        cfg.WhatsApp.APIKey,
		DeviceID:      cfg.WhatsApp.DeviceID,
		DefaultRegion: cfg.WhatsApp.DefaultRegion,
		RatePerSecond: cfg.WhatsApp.RatePerSecond,
	}, log)
}
