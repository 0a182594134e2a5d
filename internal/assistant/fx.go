package assistant

import (
	"github.com/smallbiznis/invoicerecovery/internal/assistant/generator"
	"github.com/smallbiznis/invoicerecovery/internal/assistant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assistant.service",
	fx.Provide(generator.New),
	fx.Provide(service.New),
)
