package automation

import (
	"github.com/smallbiznis/invoicerecovery/internal/automation/domain"
	"github.com/smallbiznis/invoicerecovery/internal/automation/repository"
	"github.com/smallbiznis/invoicerecovery/internal/automation/service"
	"github.com/smallbiznis/invoicerecovery/internal/providers/receipt"
	"go.uber.org/fx"
)

var Module = fx.Module("automation.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(n *receipt.Notifier) domain.ReceiptSender { return n }),
	fx.Provide(service.New),
)
