package behavior

import (
	"github.com/smallbiznis/invoicerecovery/internal/behavior/repository"
	"github.com/smallbiznis/invoicerecovery/internal/behavior/service"
	"go.uber.org/fx"
)

var Module = fx.Module("behavior.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
