package providers

import (
	"github.com/smallbiznis/invoicerecovery/internal/channel"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"github.com/smallbiznis/invoicerecovery/internal/providers/email"
	"github.com/smallbiznis/invoicerecovery/internal/providers/pdf"
	"github.com/smallbiznis/invoicerecovery/internal/providers/receipt"
	"github.com/smallbiznis/invoicerecovery/internal/providers/whatsapp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers",
	pdf.Module,
	fx.Provide(NewChannelSender),
	fx.Provide(receipt.New),
)

// NewChannelSender routes outbound messages to the configured e-mail and WhatsApp providers.
func NewChannelSender(cfg config.Config, log *zap.Logger) channel.Sender {
	return channel.NewRouter(map[channel.Channel]channel.Sender{
		channel.Email:    email.NewFromConfig(cfg, log),
		channel.WhatsApp: whatsapp.NewFromConfig(cfg, log),
	})
}
